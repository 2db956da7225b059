package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sells-group/tender-cli/internal/model"
)

// MergeSummaries joins per-file summaries under "=== FILE: name ==="
// markers. Files without a summary are left out.
func MergeSummaries(files, summaries []string) string {
	var b strings.Builder
	for i, f := range files {
		if i >= len(summaries) || strings.TrimSpace(summaries[i]) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "=== FILE: %s ===\n%s", filepath.Base(f), strings.TrimSpace(summaries[i]))
	}
	return b.String()
}

// ComposeReport appends the item analyses to the report, separated by
// blank lines.
func ComposeReport(report string, analyses []string) string {
	return strings.Join(append([]string{report}, analyses...), "\n\n")
}

// RenderRecord renders the accumulated tender record as input for the
// final report.
func RenderRecord(rec *model.TenderRecord) string {
	var b strings.Builder
	m := rec.Metadata

	b.WriteString("# Закупка\n")
	fmt.Fprintf(&b, "Реестровый номер: %s\n", rec.RegNumber)
	line(&b, "Наименование", m.Name)
	if m.BeginPrice > 0 {
		fmt.Fprintf(&b, "Начальная цена: %.2f\n", m.BeginPrice)
	}
	line(&b, "Способ закупки", m.TypeName)
	line(&b, "Регион", m.Region)
	line(&b, "Дата публикации", m.PublishDate)
	line(&b, "Окончание подачи заявок", m.EndDate)
	line(&b, "Площадка", m.EtpLink)
	if len(m.LotCategories) > 0 {
		line(&b, "Категории", strings.Join(m.LotCategories, ", "))
	}
	for _, c := range m.Customers {
		line(&b, "Заказчик", c.ShortName)
	}

	if ext := rec.ExtractedAnalysis; ext != nil {
		b.WriteString("\n# Данные документации\n")
		t := ext.Tender
		line(&b, "Предмет", t.Name)
		line(&b, "Тип", t.Type)
		if p := t.Price.String(); p != "" {
			fmt.Fprintf(&b, "Цена: %s %s\n", p, t.Currency)
		}
		line(&b, "Срок подачи заявок", t.ApplicationDeadline)
		line(&b, "Дата аукциона", t.AuctionDate)

		c := ext.Customer
		line(&b, "Заказчик", c.Name)
		line(&b, "ИНН", c.INN.String())
		line(&b, "Адрес", c.Address)

		d := ext.DeliveryTerms
		if v := d.DeliveryPeriod.Value.String(); v != "" {
			fmt.Fprintf(&b, "Срок поставки: %s %s\n", v, d.DeliveryPeriod.Type)
		}
		line(&b, "Место поставки", d.DeliveryLocation)
		line(&b, "Аванс, %", d.PaymentTerms.PrepaymentPercent.String())
		line(&b, "Срок оплаты, дней", d.PaymentTerms.PaymentDays.String())
		security(&b, "Обеспечение заявки", d.ApplicationSecurity)
		security(&b, "Обеспечение контракта", d.ContractSecurity)

		sc := ext.SpecialConditions
		list(&b, "Требования к участникам", sc.RequirementsForParticipants)
		list(&b, "Штрафы", sc.Penalties)
		list(&b, "Прочие условия", sc.OtherConditions)
	}

	items := rec.Items()
	if len(items) > 0 {
		b.WriteString("\n# Позиции\n")
	}
	for i, it := range items {
		fmt.Fprintf(&b, "\n## %d. %s\n", i+1, it.Name)
		if q := it.Quantity.Value.String(); q != "" {
			fmt.Fprintf(&b, "Количество: %s %s\n", q, it.Quantity.Unit)
		}
		if i >= len(rec.FindRequests) {
			continue
		}
		fr := rec.FindRequests[i]
		fmt.Fprintf(&b, "Сайтов с данными: %d\n", len(fr.AnalyzedSites()))
		if fr.ProductAnalysis != nil && *fr.ProductAnalysis != "" {
			fmt.Fprintf(&b, "Анализ:\n%s\n", strings.TrimSpace(*fr.ProductAnalysis))
		} else {
			b.WriteString("Анализ: нет данных\n")
		}
	}
	return b.String()
}

func line(b *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, value)
}

func list(b *strings.Builder, label string, values []string) {
	if len(values) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", label)
	for _, v := range values {
		fmt.Fprintf(b, "- %s\n", v)
	}
}

func security(b *strings.Builder, label string, s model.Security) {
	switch {
	case s.Amount != "" && s.Percent != "":
		fmt.Fprintf(b, "%s: %s (%s%%)\n", label, s.Amount, s.Percent)
	case s.Amount != "":
		fmt.Fprintf(b, "%s: %s\n", label, s.Amount)
	case s.Percent != "":
		fmt.Fprintf(b, "%s: %s%%\n", label, s.Percent)
	}
}
