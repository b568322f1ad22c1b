package main

import (
	"bytes"
	"fmt"
	"go/format"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/jazi007/oxidros-sub001/typedesc"
)

const (
	roszImport     = "github.com/jazi007/oxidros-sub001/rosz"
	cdrImport      = "github.com/jazi007/oxidros-sub001/cdr"
	typedescImport = "github.com/jazi007/oxidros-sub001/typedesc"
)

type CodeBuilder struct {
	buf        bytes.Buffer
	indent     int
	currentPkg string // current Go package being generated
}

func (b *CodeBuilder) P(format string, args ...interface{}) {
	for i := 0; i < b.indent; i++ {
		b.buf.WriteString("\t")
	}
	fmt.Fprintf(&b.buf, format, args...)
	b.buf.WriteString("\n")
}

func (b *CodeBuilder) In()  { b.indent++ }
func (b *CodeBuilder) Out() { b.indent-- }

func (b *CodeBuilder) Bytes() ([]byte, error) {
	return format.Source(b.buf.Bytes())
}

// Generator renders the messages and services of one manifest. Type hashes
// are computed from the field definitions; a manifest hash that disagrees is
// an error in strict mode and a warning otherwise.
type Generator struct {
	prefix string
	strict bool
	reg    *registry
	logger *slog.Logger
}

func NewGenerator(m CodegenManifest, prefix string, strict bool, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{prefix: prefix, strict: strict, reg: newRegistry(m), logger: logger}
}

func (gen *Generator) checkHash(name, manifest, computed string) error {
	if manifest == "" || manifest == computed {
		return nil
	}
	if gen.strict {
		return fmt.Errorf("%s: manifest hash %s does not match computed %s", name, manifest, computed)
	}
	gen.logger.Warn("type hash mismatch, using computed hash", "type", name, "manifest", manifest, "computed", computed)
	return nil
}

// imports returns the import block for code using fields.
func (gen *Generator) imports(g *CodeBuilder, fields []FieldDefinition, needRosz bool) {
	cross := map[string]bool{}
	for _, field := range fields {
		switch field.FieldType.Kind {
		case "Time", "Duration":
			needRosz = true
		case "Custom":
			if field.FieldType.Package != nil {
				if pkg := sanitizePackageName(*field.FieldType.Package); pkg != g.currentPkg {
					cross[pkg] = true
				}
			}
		}
	}
	pkgs := make([]string, 0, len(cross))
	for pkg := range cross {
		pkgs = append(pkgs, pkg)
	}
	sort.Strings(pkgs)

	g.P("import (")
	g.In()
	g.P("%q", cdrImport)
	if needRosz {
		g.P("%q", roszImport)
	}
	g.P("%q", typedescImport)
	for _, pkg := range pkgs {
		g.P(`"%s/generated/%s"`, gen.prefix, pkg)
	}
	g.Out()
	g.P(")")
	g.P("")
}

func header(g *CodeBuilder) {
	g.P("// Code generated by rosz-codegen. DO NOT EDIT.")
	g.P("")
	g.P("package %s", g.currentPkg)
	g.P("")
}

// Message generates the Go code of a message type.
func (gen *Generator) Message(msg MessageDefinition) ([]byte, error) {
	name := rosTypeName(msg, "msg")
	desc, err := gen.reg.describe(name, msg)
	if err != nil {
		return nil, err
	}
	hash := typedesc.Hash(desc)
	if err := gen.checkHash(name, msg.TypeHash, hash); err != nil {
		return nil, err
	}

	g := &CodeBuilder{currentPkg: sanitizePackageName(msg.Package)}
	header(g)
	gen.imports(g, msg.Fields, false)
	generateMessageType(g, msg.Name, name, hash, desc, msg)
	return g.Bytes()
}

// Service generates the request and response types of a service and its
// rosz.ServiceType.
func (gen *Generator) Service(srv ServiceDefinition) ([]byte, error) {
	name := srv.FullName
	if strings.Count(name, "/") != 2 {
		name = typedesc.Name(srv.Package, "srv", srv.Name)
	}
	reqName, respName := name+"_Request", name+"_Response"
	reqDesc, err := gen.reg.describe(reqName, srv.Request)
	if err != nil {
		return nil, err
	}
	respDesc, err := gen.reg.describe(respName, srv.Response)
	if err != nil {
		return nil, err
	}
	hash := typedesc.Hash(typedesc.NewService(name, reqDesc, respDesc))
	if err := gen.checkHash(name, srv.TypeHash, hash); err != nil {
		return nil, err
	}
	reqHash, respHash := typedesc.Hash(reqDesc), typedesc.Hash(respDesc)
	if err := gen.checkHash(reqName, srv.Request.TypeHash, reqHash); err != nil {
		return nil, err
	}
	if err := gen.checkHash(respName, srv.Response.TypeHash, respHash); err != nil {
		return nil, err
	}

	g := &CodeBuilder{currentPkg: sanitizePackageName(srv.Package)}
	header(g)
	gen.imports(g, append(append([]FieldDefinition(nil), srv.Request.Fields...), srv.Response.Fields...), true)

	g.P("const (")
	g.In()
	g.P("%s_TypeName = %q", srv.Name, name)
	g.P("%s_TypeHash = %q", srv.Name, hash)
	g.Out()
	g.P(")")
	g.P("")
	g.P("// %sService is the service type %s", srv.Name, name)
	g.P("var %sService = rosz.ServiceType{Name: %s_TypeName, Hash: %s_TypeHash}", srv.Name, srv.Name, srv.Name)
	g.P("")

	generateMessageType(g, srv.Name+"Request", reqName, reqHash, reqDesc, srv.Request)
	generateMessageType(g, srv.Name+"Response", respName, respHash, respDesc, srv.Response)
	return g.Bytes()
}

func generateMessageType(g *CodeBuilder, goName, rosName, hash string, desc typedesc.Message, msg MessageDefinition) {
	generateStructInPkg(g, goName, rosName, msg, g.currentPkg)
	generateConstants(g, goName, rosName, hash, msg)
	generateDescription(g, goName, desc)
	generateMethods(g, goName)
}

func generateStructInPkg(g *CodeBuilder, goName, rosName string, msg MessageDefinition, currentPkg string) {
	g.P("// %s is the ROS 2 type %s", goName, rosName)
	g.P("type %s struct {", goName)
	g.In()
	for _, field := range msg.Fields {
		g.P("%s %s", capitalize(field.Name), fieldToGoTypeInPkg(field, currentPkg))
	}
	g.Out()
	g.P("}")
	g.P("")
}

func generateConstants(g *CodeBuilder, goName, rosName, hash string, msg MessageDefinition) {
	g.P("const (")
	g.In()
	g.P("%s_TypeName = %q", goName, rosName)
	g.P("%s_TypeHash = %q", goName, hash)
	g.Out()
	g.P(")")
	g.P("")

	if len(msg.Constants) > 0 {
		g.P("// Message-specific constants")
		g.P("const (")
		g.In()
		for _, c := range msg.Constants {
			g.P("%s_%s %s = %s", goName, c.Name, constGoType(c.ConstType), constValue(c))
		}
		g.Out()
		g.P(")")
		g.P("")
	}
}

func constGoType(rosType string) string {
	switch strings.ToLower(rosType) {
	case "bool":
		return "bool"
	case "byte", "char", "uint8":
		return "uint8"
	case "float32":
		return "float32"
	case "float64":
		return "float64"
	case "string":
		return "string"
	case "int8", "int16", "int32", "int64", "uint16", "uint32", "uint64":
		return strings.ToLower(rosType)
	default:
		return "int64"
	}
}

func constValue(c ConstantDefinition) string {
	if constGoType(c.ConstType) != "string" {
		return c.Value
	}
	if v, err := strconv.Unquote(c.Value); err == nil {
		return strconv.Quote(v)
	}
	if len(c.Value) >= 2 && c.Value[0] == '\'' && c.Value[len(c.Value)-1] == '\'' {
		return strconv.Quote(c.Value[1 : len(c.Value)-1])
	}
	return strconv.Quote(c.Value)
}

// generateDescription renders desc as a typedesc.Message literal.
func generateDescription(g *CodeBuilder, goName string, desc typedesc.Message) {
	g.P("// %s_Description is the type description %s_TypeHash is computed from.", goName, goName)
	g.P("var %s_Description = typedesc.NewMessage(", goName)
	g.In()
	writeIndividual(g, desc.TypeDescription)
	for _, ref := range desc.ReferencedTypeDescriptions {
		writeIndividual(g, ref)
	}
	g.Out()
	g.P(")")
	g.P("")
}

func writeIndividual(g *CodeBuilder, ind typedesc.Individual) {
	g.P("typedesc.NewIndividual(%q,", ind.TypeName)
	g.In()
	for _, f := range ind.Fields {
		g.P("typedesc.NewField(%q, %s),", f.Name, fieldTypeLiteral(f.Type))
	}
	g.Out()
	g.P("),")
}

func fieldTypeLiteral(t typedesc.FieldType) string {
	parts := []string{fmt.Sprintf("TypeID: %d", t.TypeID)}
	if t.Capacity != 0 {
		parts = append(parts, fmt.Sprintf("Capacity: %d", t.Capacity))
	}
	if t.StringCapacity != 0 {
		parts = append(parts, fmt.Sprintf("StringCapacity: %d", t.StringCapacity))
	}
	if t.NestedTypeName != "" {
		parts = append(parts, fmt.Sprintf("NestedTypeName: %q", t.NestedTypeName))
	}
	return "typedesc.FieldType{" + strings.Join(parts, ", ") + "}"
}

func generateMethods(g *CodeBuilder, goName string) {
	g.P("// TypeName returns the full ROS 2 type name")
	g.P("func (m *%s) TypeName() string { return %s_TypeName }", goName, goName)
	g.P("")
	g.P("// TypeHash returns the ROS 2 type hash (RIHS01 format)")
	g.P("func (m *%s) TypeHash() string { return %s_TypeHash }", goName, goName)
	g.P("")
	g.P("// TypeDescription returns the description the type hash is computed from")
	g.P("func (m *%s) TypeDescription() typedesc.Message { return %s_Description }", goName, goName)
	g.P("")
	g.P("// SerializeCDR serializes the message to little-endian CDR, header included")
	g.P("func (m *%s) SerializeCDR() ([]byte, error) { return cdr.Marshal(m) }", goName)
	g.P("")
	g.P("// DeserializeCDR deserializes CDR data into the message")
	g.P("func (m *%s) DeserializeCDR(data []byte) error { return cdr.Unmarshal(data, m) }", goName)
	g.P("")
}

func fieldToGoType(field FieldDefinition) string {
	return fieldToGoTypeInPkg(field, "")
}

func fieldToGoTypeInPkg(field FieldDefinition, currentPkg string) string {
	var baseType string

	switch field.FieldType.Kind {
	case "Bool":
		baseType = "bool"
	case "Byte", "Char", "UInt8":
		baseType = "uint8"
	case "Int8":
		baseType = "int8"
	case "Int16":
		baseType = "int16"
	case "UInt16":
		baseType = "uint16"
	case "Int32":
		baseType = "int32"
	case "UInt32":
		baseType = "uint32"
	case "Int64":
		baseType = "int64"
	case "UInt64":
		baseType = "uint64"
	case "Float32":
		baseType = "float32"
	case "Float64":
		baseType = "float64"
	case "String":
		baseType = "string"
	case "Time":
		baseType = "rosz.Time"
	case "Duration":
		baseType = "rosz.Duration"
	case "Custom":
		pkg := sanitizePackageName(*field.FieldType.Package)
		if pkg == currentPkg {
			baseType = *field.FieldType.Name
		} else {
			baseType = fmt.Sprintf("%s.%s", pkg, *field.FieldType.Name)
		}
	default:
		baseType = "interface{}"
	}

	if field.IsArray {
		switch field.ArrayKind {
		case "fixed":
			return fmt.Sprintf("[%d]%s", *field.ArraySize, baseType)
		default:
			return "[]" + baseType
		}
	}

	return baseType
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
