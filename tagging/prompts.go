package tagging

// DefaultTemplate is the few-shot template used until a revision is stored.
const DefaultTemplate = `다음은 음식 이름과 그에 해당하는 태그 리스트를 추출하는 작업입니다. 각 음식 이름에 대해 적절한 태그들을 쉼표로 구분하여 나열해주세요. 태그는 #으로 시작해야 합니다.

음식: 닭가슴살 샐러드
태그: #샐러드, #고단백, #다이어트, #저탄수화물, #생식, #닭고기

음식: 김치찌개
태그: #한식, #국물요리, #매콤한, #김치, #돼지고기

음식: 현미밥
태그: #밥, #고섬유질, #혈당관리

음식: {food_name}
태그:
`
