package reasoning

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ProductFactsInstruction is the fixed page-analysis instruction used for
// every candidate site during item enrichment.
const ProductFactsInstruction = `Проанализируй содержимое страницы и извлеки актуальные сведения о товаре:
наименование и модель, производитель, цена и валюта, единица измерения, наличие на складе,
сроки поставки, ключевые технические характеристики, контакты продавца.
Если сведений о товаре нет, ответь одной строкой "Нет данных".`

// Prompts holds the system prompts for each gateway operation. Any field can
// be overridden from a YAML file.
type Prompts struct {
	Summarize string `yaml:"summarize"`
	Extract   string `yaml:"extract"`
	Queries   string `yaml:"queries"`
	Page      string `yaml:"page"`
	Product   string `yaml:"product"`
	Report    string `yaml:"report"`
}

// DefaultPrompts returns the built-in prompt set.
func DefaultPrompts() Prompts {
	return Prompts{
		Summarize: `Ты аналитик государственных закупок. Внимательно изучи документ закупочной документации
и перескажи всё, что важно для участника: предмет закупки, начальную цену, сроки, требования
к участникам, условия поставки и оплаты, обеспечение заявки и контракта. Перечисли каждую
позицию товара с количеством, единицами измерения и всеми техническими характеристиками.`,
		Extract: `Ты получаешь выжимки из всех документов одной закупки. Они разделены строками вида
"=== FILE: имя ===". Собери из них единый структурированный результат и верни его строго
в одном блоке ` + "```json ... ```" + ` следующей формы:
{
  "tender": {"name", "number", "type", "price", "currency", "application_deadline", "auction_date"},
  "customer": {"name", "inn", "ogrn", "address", "contacts"},
  "delivery_terms": {
    "delivery_period": {"type", "value"}, "delivery_location",
    "payment_terms": {"prepayment_percent", "payment_days"},
    "application_security": {"amount", "percent"}, "contract_security": {"amount", "percent"}
  },
  "items": [{"name", "quantity": {"value", "unit"}, "specifications": {"ключ": "значение"},
             "requirements": ["..."], "estimated_price"}],
  "special_conditions": {"requirements_for_participants": [], "penalties": [], "other_conditions": []}
}
Не добавляй текст вне блока json. Неизвестные значения указывай как null.`,
		Queries: `Ты помогаешь найти товар у поставщиков в интернете. По описанию товара и его
характеристикам составь от трёх до пяти поисковых запросов для Google и Яндекса на русском языке.
Каждый запрос на отдельной строке, без нумерации, кавычек и пояснений.`,
		Page: `Ты анализируешь сохранённую веб-страницу поставщика.`,
		Product: `Ты эксперт по закупкам. На основе сведений с сайтов поставщиков подготовь анализ товара:
соответствие требованиям закупки, диапазон рыночных цен со ссылками на источники, доступность
и сроки поставки, риски. Пиши кратко и по делу.`,
		Report: `Ты готовишь итоговый отчёт по закупке для руководителя отдела продаж. Используй данные
о закупке, заказчике, условиях и анализ каждой позиции. Оцени выгодность участия, риски,
ожидаемую маржу и дай рекомендацию: участвовать или нет, с обоснованием.`,
	}
}

// LoadPrompts returns DefaultPrompts with non-empty fields from the YAML file
// at path applied on top. An empty path returns the defaults.
func LoadPrompts(path string) (Prompts, error) {
	p := DefaultPrompts()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return p, eris.Wrap(err, "reasoning: read prompts file")
	}

	var override Prompts
	if err := yaml.Unmarshal(data, &override); err != nil {
		return p, eris.Wrap(err, "reasoning: parse prompts file")
	}

	for _, f := range []struct {
		dst *string
		src string
	}{
		{&p.Summarize, override.Summarize},
		{&p.Extract, override.Extract},
		{&p.Queries, override.Queries},
		{&p.Page, override.Page},
		{&p.Product, override.Product},
		{&p.Report, override.Report},
	} {
		if f.src != "" {
			*f.dst = f.src
		}
	}
	return p, nil
}
