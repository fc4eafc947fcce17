// Package fsrepo implements the Structure Repository on a directory tree:
// groups are directories and blocks are XML documents named after the block.
package fsrepo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/ukaji3/exclone-go/pkg/exclone/models"
	"github.com/ukaji3/exclone-go/pkg/exclone/repository"
	"go.uber.org/zap"
)

const blockExt = ".xml"

// Repo is a directory-backed repository. Changes are written immediately.
type Repo struct {
	dir    string
	logger *zap.Logger
}

var _ repository.Repository = (*Repo)(nil)

// Open opens the repository rooted at dir.
func Open(dir string, logger *zap.Logger) (*Repo, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, repository.NewError(repository.KindConnectionLost, "open", dir, err)
	}
	if !info.IsDir() {
		return nil, repository.NewError(repository.KindConnectionLost, "open", dir, errors.New("not a directory"))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repo{dir: dir, logger: logger}, nil
}

// Dir returns the repository root directory.
func (r *Repo) Dir() string {
	return r.dir
}

func (r *Repo) alive(op string) error {
	if _, err := os.Stat(r.dir); err != nil {
		return repository.NewError(repository.KindConnectionLost, op, r.dir, err)
	}
	return nil
}

func (r *Repo) abs(ref string) string {
	return filepath.Join(r.dir, filepath.FromSlash(ref))
}

func (r *Repo) groupDir(op string, g models.Group) (string, error) {
	if err := r.alive(op); err != nil {
		return "", err
	}
	dir := r.abs(g.Ref)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return "", repository.NewError(repository.KindObjectInvalid, op, g.Name, fmt.Errorf("group %q no longer exists", g.Ref))
	}
	return dir, nil
}

func (r *Repo) Root() (models.Group, error) {
	if err := r.alive("root"); err != nil {
		return models.Group{}, err
	}
	return models.Group{Name: filepath.Base(r.dir), Ref: ""}, nil
}

func (r *Repo) Groups(parent models.Group) ([]models.Group, error) {
	dir, err := r.groupDir("groups", parent)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, repository.Classify("groups", parent.Name, err)
	}
	var out []models.Group
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, models.Group{Name: e.Name(), Ref: path.Join(parent.Ref, e.Name())})
		}
	}
	return out, nil
}

func (r *Repo) Blocks(parent models.Group) ([]models.Block, error) {
	dir, err := r.groupDir("blocks", parent)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, repository.Classify("blocks", parent.Name, err)
	}
	var out []models.Block
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), blockExt) {
			continue
		}
		ref := path.Join(parent.Ref, e.Name())
		_, el, err := r.load(ref)
		if err != nil {
			r.logger.Warn("fsrepo.unreadable_block", zap.String("ref", ref), zap.Error(err))
			continue
		}
		out = append(out, blockFromElement(el, ref))
	}
	return out, nil
}

func (r *Repo) FindGroup(parent models.Group, name string) (models.Group, bool, error) {
	groups, err := r.Groups(parent)
	if err != nil {
		return models.Group{}, false, err
	}
	for _, g := range groups {
		if strings.EqualFold(g.Name, name) {
			return g, true, nil
		}
	}
	return models.Group{}, false, nil
}

func (r *Repo) CreateGroup(parent models.Group, name string) (models.Group, error) {
	dir, err := r.groupDir("create group", parent)
	if err != nil {
		return models.Group{}, err
	}
	if name == "" || strings.ContainsAny(name, `/\`) {
		return models.Group{}, repository.NewError(repository.KindRejected, "create group", name, errors.New("invalid group name"))
	}
	if err := os.Mkdir(filepath.Join(dir, name), 0o755); err != nil {
		return models.Group{}, repository.Classify("create group", name, err)
	}
	r.logger.Debug("fsrepo.group_created", zap.String("parent", parent.Ref), zap.String("name", name))
	return models.Group{Name: name, Ref: path.Join(parent.Ref, name)}, nil
}

func (r *Repo) Export(b models.Block, dst string) error {
	if err := r.alive("export"); err != nil {
		return err
	}
	data, err := os.ReadFile(r.abs(b.Ref))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return repository.NewError(repository.KindObjectInvalid, "export", b.Name, err)
		}
		return repository.Classify("export", b.Name, err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return repository.Classify("export", b.Name, err)
	}
	return nil
}

func (r *Repo) Import(parent models.Group, src string, mode repository.ImportMode) ([]models.Block, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(src); err != nil {
		return nil, repository.Classify("import", src, err)
	}
	b, err := r.Put(parent, doc, mode)
	if err != nil {
		return nil, err
	}
	return []models.Block{b}, nil
}

// Put stores an in-memory block document into parent.
func (r *Repo) Put(parent models.Group, doc *etree.Document, mode repository.ImportMode) (models.Block, error) {
	dir, err := r.groupDir("import", parent)
	if err != nil {
		return models.Block{}, err
	}
	el := BlockElement(doc)
	if el == nil {
		return models.Block{}, repository.NewError(repository.KindRejected, "import", "", errors.New("document has no block element"))
	}
	name := el.SelectAttrValue(attrName, "")
	if name == "" {
		return models.Block{}, repository.NewError(repository.KindRejected, "import", "", errors.New("block has no name"))
	}

	all, err := r.all()
	if err != nil {
		return models.Block{}, err
	}
	existing, found := lookup(all, name)
	if found && mode == repository.ImportFailOnConflict {
		return models.Block{}, repository.NewError(repository.KindConflict, "import", name, errors.New("block already exists"))
	}
	if err := validate(el, all); err != nil {
		return models.Block{}, repository.Classify("import", name, err)
	}

	number, _ := strconv.Atoi(el.SelectAttrValue(attrNumber, ""))
	if number > 0 && numberTaken(all, number, existing.Ref) {
		el.CreateAttr(attrNumber, strconv.Itoa(nextNumber(all)))
	}

	if found {
		if err := os.Remove(r.abs(existing.Ref)); err != nil {
			return models.Block{}, repository.Classify("import", name, err)
		}
	}
	ref := path.Join(parent.Ref, name+blockExt)
	doc.Indent(2)
	if err := doc.WriteToFile(filepath.Join(dir, name+blockExt)); err != nil {
		return models.Block{}, repository.Classify("import", name, err)
	}
	r.logger.Debug("fsrepo.block_imported", zap.String("ref", ref), zap.Stringer("mode", mode))
	return blockFromElement(el, ref), nil
}

func (r *Repo) CreateInstance(parent models.Group, spec repository.InstanceSpec) (models.Block, error) {
	if _, err := r.groupDir("create instance", parent); err != nil {
		return models.Block{}, err
	}
	all, err := r.all()
	if err != nil {
		return models.Block{}, err
	}
	if _, found := lookup(all, spec.Name); found {
		return models.Block{}, repository.NewError(repository.KindConflict, "create instance", spec.Name, errors.New("block already exists"))
	}
	if _, found := lookup(all, spec.TypeName); !found {
		return models.Block{}, repository.NewError(repository.KindNotFound, "create instance", spec.Name, fmt.Errorf("type %q not found", spec.TypeName))
	}

	number := spec.Number
	switch spec.Mode {
	case repository.NumberManual:
		if number <= 0 || numberTaken(all, number, "") {
			return models.Block{}, repository.NewError(repository.KindRejected, "create instance", spec.Name, fmt.Errorf("number %d is not available", number))
		}
	default:
		number = nextNumber(all)
	}

	doc := NewBlockDocument(models.Block{
		Name:       spec.Name,
		Kind:       models.KindDataRecord,
		Number:     number,
		InstanceOf: spec.TypeName,
	})
	return r.Put(parent, doc, repository.ImportFailOnConflict)
}

func (r *Repo) Rename(b models.Block, name string) (models.Block, error) {
	if err := r.alive("rename"); err != nil {
		return models.Block{}, err
	}
	doc, el, err := r.load(b.Ref)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.Block{}, repository.NewError(repository.KindObjectInvalid, "rename", b.Name, err)
		}
		return models.Block{}, repository.Classify("rename", b.Name, err)
	}
	all, err := r.all()
	if err != nil {
		return models.Block{}, err
	}
	if other, found := lookup(all, name); found && other.Ref != b.Ref {
		return models.Block{}, repository.NewError(repository.KindConflict, "rename", name, errors.New("block already exists"))
	}

	el.CreateAttr(attrName, name)
	ref := path.Join(path.Dir(b.Ref), name+blockExt)
	doc.Indent(2)
	if err := doc.WriteToFile(r.abs(ref)); err != nil {
		return models.Block{}, repository.Classify("rename", name, err)
	}
	if ref != b.Ref {
		if err := os.Remove(r.abs(b.Ref)); err != nil {
			return models.Block{}, repository.Classify("rename", b.Name, err)
		}
	}
	return blockFromElement(el, ref), nil
}

// Save is a no-op beyond a liveness check: every change is already on disk.
func (r *Repo) Save() error {
	return r.alive("save")
}

func (r *Repo) load(ref string) (*etree.Document, *etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(r.abs(ref)); err != nil {
		return nil, nil, err
	}
	el := BlockElement(doc)
	if el == nil {
		return nil, nil, fmt.Errorf("%s: no block element", ref)
	}
	return doc, el, nil
}

// all lists every block in the repository.
func (r *Repo) all() ([]models.Block, error) {
	var out []models.Block
	err := filepath.WalkDir(r.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(p), blockExt) {
			return nil
		}
		rel, err := filepath.Rel(r.dir, p)
		if err != nil {
			return err
		}
		ref := filepath.ToSlash(rel)
		if _, el, err := r.load(ref); err == nil {
			out = append(out, blockFromElement(el, ref))
		}
		return nil
	})
	if err != nil {
		return nil, repository.NewError(repository.KindConnectionLost, "scan", r.dir, err)
	}
	return out, nil
}

func lookup(all []models.Block, name string) (models.Block, bool) {
	for _, b := range all {
		if strings.EqualFold(b.Name, name) {
			return b, true
		}
	}
	return models.Block{}, false
}

func numberTaken(all []models.Block, number int, exceptRef string) bool {
	for _, b := range all {
		if b.Number == number && b.Ref != exceptRef {
			return true
		}
	}
	return false
}

func nextNumber(all []models.Block) int {
	highest := 0
	for _, b := range all {
		if b.Number > highest {
			highest = b.Number
		}
	}
	return highest + 1
}

// validate checks that referenced types exist.
func validate(el *etree.Element, all []models.Block) error {
	if typeName := el.SelectAttrValue(attrInstanceOf, ""); typeName != "" {
		if _, ok := lookup(all, typeName); !ok {
			return repository.NewError(repository.KindNotFound, "import", typeName, errors.New("instance type not found"))
		}
	}
	for _, t := range userTypes(el) {
		if _, ok := lookup(all, t); !ok {
			return fmt.Errorf("block is inconsistent: member type %q not found", t)
		}
	}
	return nil
}
