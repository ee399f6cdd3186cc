package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("음식: {food_name}\n태그:", "김치찌개")
	require.NoError(t, err)
	assert.Equal(t, "음식: 김치찌개\n태그:", out)
}

func TestRenderTemplate_EscapedBraces(t *testing.T) {
	out, err := RenderTemplate(`{{"food": "{food_name}"}}`, "현미밥")
	require.NoError(t, err)
	assert.Equal(t, `{"food": "현미밥"}`, out)
}

func TestRenderTemplate_NameNotReinterpreted(t *testing.T) {
	out, err := RenderTemplate("음식: {food_name}", "{weird}")
	require.NoError(t, err)
	assert.Equal(t, "음식: {weird}", out)
}

func TestCheckTemplate(t *testing.T) {
	tests := []struct {
		name     string
		template string
		wantErr  error
		anyErr   bool
	}{
		{name: "valid", template: "음식: {food_name}\n태그:"},
		{name: "slot missing", template: "음식 태그를 달아주세요", wantErr: ErrTemplateSlotMissing},
		{name: "unknown variable", template: "음식: {name}", anyErr: true},
		{name: "stray brace", template: "음식: {food_name} {", anyErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckTemplate(tt.template)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.anyErr:
				assert.Error(t, err)
			default:
				assert.NoError(t, err)
			}
		})
	}
}
