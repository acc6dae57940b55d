package domain_test

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"snippets/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// Element JSON
// ─────────────────────────────────────────────────────────────

func TestElement_JSONCarriesTypeTag(t *testing.T) {
	el := domain.Element{
		ID:        "t1",
		Name:      "Title",
		Transform: domain.Transform{Width: 100, Height: 40, Scale: 1},
		Data:      &domain.TextData{Value: "hi", Align: domain.TextAlignLeft, FontSize: 12},
	}
	b, err := json.Marshal(el)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}
	if raw["type"] != "text" {
		t.Errorf("expected type 'text', got %v", raw["type"])
	}
	if raw["value"] != "hi" {
		t.Errorf("expected flattened value field, got %v", raw["value"])
	}
	if _, ok := raw["code"]; ok {
		t.Error("text element must not carry code-editor fields")
	}

	var back domain.Element
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(el, back) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", back, el)
	}
}

func TestElement_UnknownTypeRejected(t *testing.T) {
	var el domain.Element
	err := json.Unmarshal([]byte(`{"id":"x","type":"image"}`), &el)
	if !errors.Is(err, domain.ErrUnknownElementType) {
		t.Fatalf("expected ErrUnknownElementType, got %v", err)
	}
}

func TestElement_MarshalWithoutData(t *testing.T) {
	_, err := json.Marshal(domain.Element{ID: "x"})
	if err == nil || !strings.Contains(err.Error(), "unknown element type") {
		t.Fatalf("expected unknown element type error, got %v", err)
	}
}

func TestElement_CloneDoesNotAlias(t *testing.T) {
	src := domain.DefaultDocument().Elements[0]
	cp := src.Clone()
	cp.Data.(*domain.CodeEditorData).Code = "changed"
	cp.Transform.Position.X = -1

	if src.Data.(*domain.CodeEditorData).Code == "changed" {
		t.Error("clone shares variant data with source")
	}
	if src.Transform.Position.X == -1 {
		t.Error("clone shares position with source")
	}
}

// ─────────────────────────────────────────────────────────────
// Document
// ─────────────────────────────────────────────────────────────

func TestDefaultDocument_IsValid(t *testing.T) {
	if err := domain.DefaultDocument().Validate(); err != nil {
		t.Fatalf("default template invalid: %v", err)
	}
}

func TestDefaultDocument_FreshValues(t *testing.T) {
	a := domain.DefaultDocument()
	b := domain.DefaultDocument()
	a.Canvas.Background.Fill.Stops[0].Color = "#000000"
	if b.Canvas.Background.Fill.Stops[0].Color == "#000000" {
		t.Error("DefaultDocument returned shared state")
	}
}

func TestDocument_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *domain.Document)
	}{
		{"zero canvas", func(d *domain.Document) { d.Canvas.Width = 0 }},
		{"duplicate ids", func(d *domain.Document) { d.Elements[1].ID = d.Elements[0].ID }},
		{"below min width", func(d *domain.Document) { d.Elements[0].Transform.Width = 1 }},
		{"zero scale", func(d *domain.Document) { d.Elements[0].Transform.Scale = 0 }},
		{"bad fill", func(d *domain.Document) { d.Canvas.Background.Fill.Type = "radial" }},
		{"bad align", func(d *domain.Document) { d.Elements[1].Data.(*domain.TextData).Align = "justify" }},
		{"missing id", func(d *domain.Document) { d.Elements[0].ID = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := domain.DefaultDocument()
			tt.mutate(&d)
			if err := d.Validate(); !errors.Is(err, domain.ErrInvalidDocument) {
				t.Fatalf("expected ErrInvalidDocument, got %v", err)
			}
		})
	}
}

func TestDocumentPatch_ApplyKeepsAbsentFields(t *testing.T) {
	d := domain.DefaultDocument()
	c := d.Canvas
	c.Width = 1200

	out := domain.DocumentPatch{Canvas: &c}.Apply(d)
	if out.Canvas.Width != 1200 {
		t.Errorf("expected width 1200, got %v", out.Canvas.Width)
	}
	if len(out.Elements) != len(d.Elements) {
		t.Errorf("elements should be kept, got %d", len(out.Elements))
	}

	out = domain.DocumentPatch{Elements: []domain.Element{}}.Apply(d)
	if len(out.Elements) != 0 {
		t.Errorf("empty elements patch should clear, got %d", len(out.Elements))
	}
}

func TestDocumentPatch_Merge(t *testing.T) {
	d := domain.DefaultDocument()
	first := domain.DocumentPatch{Canvas: &d.Canvas}
	second := domain.DocumentPatch{Elements: d.Elements[:1]}

	merged := first.Merge(second)
	if merged.Canvas == nil || len(merged.Elements) != 1 {
		t.Fatalf("merge lost fields: %+v", merged)
	}
	if merged.Empty() {
		t.Error("merged patch reported empty")
	}
	if !(domain.DocumentPatch{}).Empty() {
		t.Error("zero patch should be empty")
	}
}

// ─────────────────────────────────────────────────────────────
// ElementPatch
// ─────────────────────────────────────────────────────────────

func TestElementPatch_VariantMismatch(t *testing.T) {
	code := domain.DefaultDocument().Elements[0]
	value := "x"
	_, ok := domain.ElementPatch{Text: &domain.TextPatch{Value: &value}}.ApplyTo(code)
	if ok {
		t.Fatal("text patch applied to code editor")
	}
}

func TestElementPatch_Apply(t *testing.T) {
	code := domain.DefaultDocument().Elements[0]
	src := "print(1)"
	lang := "python"
	name := "Snippet"
	out, ok := domain.ElementPatch{
		Name: &name,
		Code: &domain.CodeEditorPatch{Code: &src, Language: &lang},
	}.ApplyTo(code)
	if !ok {
		t.Fatal("expected patch to apply")
	}
	d := out.Data.(*domain.CodeEditorData)
	if d.Code != src || d.Language != lang || out.Name != name {
		t.Errorf("unexpected result %+v / %+v", out, d)
	}
	if code.Data.(*domain.CodeEditorData).Code == src {
		t.Error("source element was mutated")
	}
}
