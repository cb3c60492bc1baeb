package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/verity-ml/predict-cli/internal/model"
)

func TestDefaultFormatter(t *testing.T) {
	field := model.InputField{Name: "description", Aliases: []string{"desc", "about"}}

	tests := []struct {
		name string
		row  map[string]string
		want string
	}{
		{"primary column", map[string]string{"description": "makes anvils"}, "makes anvils"},
		{"first alias", map[string]string{"desc": "sells energy"}, "sells energy"},
		{"primary wins over alias", map[string]string{"description": "a", "desc": "b"}, "a"},
		{"case-insensitive match", map[string]string{"Description": "anvils"}, "anvils"},
		{"whitespace trimmed", map[string]string{"description": "  anvils  "}, "anvils"},
		{"all missing", map[string]string{"other": "x"}, BlankValue},
		{"all empty", map[string]string{"description": "", "desc": "  "}, BlankValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := defaultFormatter(tt.row, field)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFullDescriptionUniqueFormatter(t *testing.T) {
	field := model.InputField{Name: "description", Aliases: []string{"summary", "about"}}

	tests := []struct {
		name string
		row  map[string]string
		want string
	}{
		{
			"concatenates distinct values",
			map[string]string{"description": "makes anvils", "summary": "heavy industry"},
			"makes anvils heavy industry",
		},
		{
			"collapses duplicates case-insensitively",
			map[string]string{"description": "Anvils", "summary": "anvils", "about": "est 1902"},
			"Anvils est 1902",
		},
		{
			"skips empties",
			map[string]string{"description": "", "about": "est 1902"},
			"est 1902",
		},
		{"nothing found", map[string]string{}, BlankValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fullDescriptionUniqueFormatter(tt.row, field)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatterByName_UnknownFallsBack(t *testing.T) {
	f := FormatterByName("bogus")
	got := f(map[string]string{"x": "v"}, model.InputField{Name: "x"})
	assert.Equal(t, "v", got)
}

func TestInputValues_Order(t *testing.T) {
	m := &model.AIModel{
		Inputs: []model.InputField{
			{Name: "name"},
			{Name: "description", Formatter: "fullDescriptionUnique"},
		},
	}
	row := map[string]string{"name": "Acme", "description": "anvils"}

	assert.Equal(t, []string{"name", "description"}, InputNames(m))
	assert.Equal(t, []string{"Acme", "anvils"}, InputValues(m, row))
}
