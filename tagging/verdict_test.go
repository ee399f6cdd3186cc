package tagging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wellFormedVerdict = `{
  "analysis_results": {
    "strengths": ["태그 형식이 일관됨"],
    "weaknesses": ["조리 방식 누락", "맛 표현 부족"]
  },
  "improvement_direction": ["조리 방식 예시 추가"],
  "optimized_new_prompt": "음식: {food_name}\n태그:",
  "optimization_score": 72
}`

func TestParseVerdict_BareJSON(t *testing.T) {
	v, err := ParseVerdict(wellFormedVerdict)
	require.NoError(t, err)
	assert.Equal(t, "음식: {food_name}\n태그:", v.RevisedTemplate)
	assert.InDelta(t, 72, v.Score, 1e-9)
	assert.Equal(t, []string{"태그 형식이 일관됨"}, v.Strengths)
	assert.Equal(t, []string{"조리 방식 누락", "맛 표현 부족"}, v.Weaknesses)
	assert.Equal(t, []string{"조리 방식 예시 추가"}, v.Directions)
}

func TestParseVerdict_FencedBlock(t *testing.T) {
	raw := "분석 결과입니다.\n```json\n" + wellFormedVerdict + "\n```\n추가 설명"
	v, err := ParseVerdict(raw)
	require.NoError(t, err)
	assert.InDelta(t, 72, v.Score, 1e-9)

	raw = "```\n" + `{"optimized_new_prompt": "{food_name}", "optimization_score": 85.5}` + "\n```"
	v, err = ParseVerdict(raw)
	require.NoError(t, err)
	assert.InDelta(t, 85.5, v.Score, 1e-9)
}

func TestParseVerdict_SurroundingText(t *testing.T) {
	raw := `Here is my verdict: {"optimized_new_prompt": "{food_name}", "optimization_score": 90} Thanks.`
	v, err := ParseVerdict(raw)
	require.NoError(t, err)
	assert.Equal(t, "{food_name}", v.RevisedTemplate)
	assert.InDelta(t, 90, v.Score, 1e-9)
}

func TestParseVerdict_Repaired(t *testing.T) {
	raw := `{"optimized_new_prompt": "{food_name}", optimization_score": 60,}`
	v, err := ParseVerdict(raw)
	require.NoError(t, err)
	assert.InDelta(t, 60, v.Score, 1e-9)
}

func TestParseVerdict_LenientAnalysis(t *testing.T) {
	raw := `{
  "analysis_results": {"strengths": "간결함", "weaknesses": 3},
  "improvement_direction": "예시 보강",
  "optimized_new_prompt": "{food_name}",
  "optimization_score": 40
}`
	v, err := ParseVerdict(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"간결함"}, v.Strengths)
	assert.Nil(t, v.Weaknesses)
	assert.Equal(t, []string{"예시 보강"}, v.Directions)
}

func TestParseVerdict_Unparseable(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"prose", "점수를 매길 수 없습니다"},
		{"truncated", `{"optimized_new_prompt": "{food_name}", "optimization_score": 7`},
		{"missing score", `{"optimized_new_prompt": "{food_name}"}`},
		{"missing template", `{"optimization_score": 90}`},
		{"empty template", `{"optimized_new_prompt": "", "optimization_score": 90}`},
		{"score as string", `{"optimized_new_prompt": "{food_name}", "optimization_score": "90"}`},
		{"score above range", `{"optimized_new_prompt": "{food_name}", "optimization_score": 120}`},
		{"score below range", `{"optimized_new_prompt": "{food_name}", "optimization_score": -1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseVerdict(tt.raw)
			assert.ErrorIs(t, err, ErrVerdictUnparseable)
		})
	}
}
