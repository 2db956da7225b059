package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// FlexString accepts a JSON string, number, boolean or null and keeps its
// textual form. Model output mixes "1500" and 1500 for the same field.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*f = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
	default:
		// numbers, booleans and nested values keep their raw JSON text
		*f = FlexString(b)
	}
	return nil
}

// String returns the textual value.
func (f FlexString) String() string { return string(f) }

// Float parses the value as a number, tolerating spaces and a decimal comma.
func (f FlexString) Float() (float64, bool) {
	s := strings.NewReplacer(" ", "", "\u00a0", "", ",", ".").Replace(string(f))
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}

// TenderExtraction is the structured analysis produced from a tender's
// documents. It is immutable once produced.
type TenderExtraction struct {
	Tender            TenderInfo        `json:"tender"`
	Customer          CustomerInfo      `json:"customer"`
	DeliveryTerms     DeliveryTerms     `json:"delivery_terms"`
	Items             []Item            `json:"items"`
	SpecialConditions SpecialConditions `json:"special_conditions"`
}

// TenderInfo identifies the tender.
type TenderInfo struct {
	Name                string     `json:"name"`
	Number              FlexString `json:"number"`
	Type                string     `json:"type"`
	Price               FlexString `json:"price"`
	Currency            string     `json:"currency"`
	ApplicationDeadline string     `json:"application_deadline"`
	AuctionDate         string     `json:"auction_date"`
}

// CustomerInfo identifies the purchasing organization.
type CustomerInfo struct {
	Name     string     `json:"name"`
	INN      FlexString `json:"inn"`
	OGRN     FlexString `json:"ogrn"`
	Address  string     `json:"address"`
	Contacts FlexString `json:"contacts"`
}

// DeliveryTerms describes delivery, payment and security terms.
type DeliveryTerms struct {
	DeliveryPeriod      Period       `json:"delivery_period"`
	DeliveryLocation    string       `json:"delivery_location"`
	PaymentTerms        PaymentTerms `json:"payment_terms"`
	ApplicationSecurity Security     `json:"application_security"`
	ContractSecurity    Security     `json:"contract_security"`
}

// Period is a typed duration such as "calendar days" / 30.
type Period struct {
	Type  string     `json:"type"`
	Value FlexString `json:"value"`
}

// PaymentTerms holds prepayment and settlement terms.
type PaymentTerms struct {
	PrepaymentPercent FlexString `json:"prepayment_percent"`
	PaymentDays       FlexString `json:"payment_days"`
}

// Security is an application or contract security requirement.
type Security struct {
	Amount  FlexString `json:"amount"`
	Percent FlexString `json:"percent"`
}

// Quantity is an item amount with its unit of measure.
type Quantity struct {
	Value FlexString `json:"value"`
	Unit  string     `json:"unit"`
}

// Item is one product or service line of the tender.
type Item struct {
	Name           string                `json:"name"`
	Quantity       Quantity              `json:"quantity"`
	Specifications map[string]FlexString `json:"specifications"`
	Requirements   []string              `json:"requirements"`
	EstimatedPrice *FlexString           `json:"estimated_price,omitempty"`
}

// SpecKeys returns the specification keys in stable order.
func (it Item) SpecKeys() []string {
	keys := make([]string, 0, len(it.Specifications))
	for k := range it.Specifications {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Describe renders the item as the natural-language text used for search
// query generation.
func (it Item) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Наименование товара: %s\n", it.Name)
	b.WriteString("Технические характеристики товара:")
	for _, k := range it.SpecKeys() {
		fmt.Fprintf(&b, "\n%s: %s", k, it.Specifications[k])
	}
	return b.String()
}

// SpecialConditions lists participant requirements, penalties and other terms.
type SpecialConditions struct {
	RequirementsForParticipants []string `json:"requirements_for_participants"`
	Penalties                   []string `json:"penalties"`
	OtherConditions             []string `json:"other_conditions"`
}
