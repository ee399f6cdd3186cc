package openai

import "github.com/tmc/langchaingo/prompts"

const judgeSystemPrompt = `당신은 LLM 프롬프트 최적화를 담당하는 엔지니어입니다.
음식 이름에서 태그를 추출하는 생성 모델의 프롬프트와 그 실행 결과를 검토하고,
결과의 품질을 평가한 뒤 더 나은 프롬프트를 제안합니다.
응답은 반드시 지정된 JSON 형식만 사용하며 다른 설명을 덧붙이지 않습니다.`

// judgeUserTemplate uses f-string syntax; literal braces are doubled.
const judgeUserTemplate = `아래의 기존 프롬프트와 테스트 케이스를 검토하여 프롬프트를 개선하세요.

평가 기준:
1. 태그가 음식의 종류(한식, 양식, 음료 등)를 정확히 나타내는가
2. 주재료와 조리 방식이 태그에 반영되었는가
3. 맛과 식감 같은 특징이 적절히 드러나는가
4. 영양 및 건강 관련 특성(고단백, 저탄수화물 등)이 타당한가
5. 모든 태그가 '#'으로 시작하고 공백 없이 쉼표로 구분되는가
6. 불필요하거나 중복된 태그 없이 간결한가
7. 서로 다른 음식에 대해 일관된 기준으로 태그가 생성되는가

<기존 프롬프트>
{existing_template}
</기존 프롬프트>

<테스트 케이스>
{test_cases}
</테스트 케이스>

다음 JSON 형식으로만 응답하세요:
{{
  "analysis_results": {{
    "strengths": ["기존 프롬프트의 장점"],
    "weaknesses": ["기존 프롬프트의 단점"]
  }},
  "improvement_direction": ["개선 방향"],
  "optimized_new_prompt": "개선된 프롬프트 전문",
  "optimization_score": 0
}}

규칙:
- optimized_new_prompt에는 예시를 10개 이하로 포함하세요.
- optimized_new_prompt는 음식 이름이 들어갈 자리에 {{food_name}} 를 정확히 한 번 사용해야 합니다.
- optimized_new_prompt 안에서 중괄호를 문자 그대로 쓰려면 두 번 겹쳐 쓰세요.
- optimization_score는 기존 프롬프트의 결과에 대한 0에서 100 사이의 정수입니다.
  0-40: 낮음, 41-70: 보통, 71-90: 좋음, 91-100: 매우 좋음.`

var judgeUserPrompt = prompts.PromptTemplate{
	Template:       judgeUserTemplate,
	InputVariables: []string{"existing_template", "test_cases"},
	TemplateFormat: prompts.TemplateFormatFString,
}
