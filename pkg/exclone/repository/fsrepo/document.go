package fsrepo

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/ukaji3/exclone-go/pkg/exclone/models"
)

// Element and attribute names of a block document:
//
//	<Document>
//	  <Block Kind="record" Name="PU1_Data" Number="12" InstanceOf="">
//	    <Interface>
//	      <Section Name="Static">
//	        <Member Name="Run" Datatype="Bool"><Comment>running</Comment></Member>
//	      </Section>
//	    </Interface>
//	  </Block>
//	</Document>
const (
	tagDocument  = "Document"
	tagBlock     = "Block"
	tagInterface = "Interface"
	tagSection   = "Section"
	tagMember    = "Member"

	attrKind       = "Kind"
	attrName       = "Name"
	attrNumber     = "Number"
	attrInstanceOf = "InstanceOf"
	attrDatatype   = "Datatype"
)

// NewBlockDocument builds a document for b with an empty static section.
func NewBlockDocument(b models.Block) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)
	el := doc.CreateElement(tagDocument).CreateElement(tagBlock)
	el.CreateAttr(attrKind, string(b.Kind))
	el.CreateAttr(attrName, b.Name)
	if b.Number > 0 {
		el.CreateAttr(attrNumber, strconv.Itoa(b.Number))
	}
	if b.InstanceOf != "" {
		el.CreateAttr(attrInstanceOf, b.InstanceOf)
	}
	el.CreateElement(tagInterface).CreateElement(tagSection).CreateAttr(attrName, "Static")
	return doc
}

// BlockElement returns the <Block> element of a document, or nil.
func BlockElement(doc *etree.Document) *etree.Element {
	root := doc.SelectElement(tagDocument)
	if root == nil {
		return nil
	}
	return root.SelectElement(tagBlock)
}

func blockFromElement(el *etree.Element, ref string) models.Block {
	b := models.Block{
		Name:       el.SelectAttrValue(attrName, ""),
		InstanceOf: el.SelectAttrValue(attrInstanceOf, ""),
		Ref:        ref,
	}
	switch models.BlockKind(el.SelectAttrValue(attrKind, "")) {
	case models.KindRoutine:
		b.Kind = models.KindRoutine
	case models.KindDataRecord:
		b.Kind = models.KindDataRecord
	default:
		b.Kind = models.KindOther
	}
	if n, err := strconv.Atoi(el.SelectAttrValue(attrNumber, "")); err == nil {
		b.Number = n
	}
	return b
}

// userTypes returns the quoted user data types referenced by members of el.
func userTypes(el *etree.Element) []string {
	var out []string
	for _, m := range el.FindElements(".//" + tagMember) {
		dt := m.SelectAttrValue(attrDatatype, "")
		if len(dt) > 2 && strings.HasPrefix(dt, `"`) && strings.HasSuffix(dt, `"`) {
			out = append(out, strings.Trim(dt, `"`))
		}
	}
	return out
}
