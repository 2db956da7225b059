package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexString_Unmarshal(t *testing.T) {
	t.Parallel()

	var v struct {
		A FlexString `json:"a"`
		B FlexString `json:"b"`
		C FlexString `json:"c"`
		D FlexString `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"1 500,50","b":1500,"c":null,"d":true}`), &v))

	assert.Equal(t, "1 500,50", v.A.String())
	assert.Equal(t, "1500", v.B.String())
	assert.Equal(t, "", v.C.String())
	assert.Equal(t, "true", v.D.String())

	f, ok := v.A.Float()
	require.True(t, ok)
	assert.InDelta(t, 1500.5, f, 0.001)

	_, ok = FlexString("n/a").Float()
	assert.False(t, ok)
}

func TestTenderExtraction_Unmarshal(t *testing.T) {
	t.Parallel()

	raw := `{
	  "tender": {"name": "Поставка", "number": 123, "price": "10000", "currency": "RUB"},
	  "customer": {"name": "ГБУЗ", "inn": 7701234567},
	  "items": [
	    {"name": "Бумага А4", "quantity": {"value": 100, "unit": "пачка"},
	     "specifications": {"Плотность": "80 г/м2", "Листов": 500},
	     "requirements": ["ГОСТ"], "estimated_price": 350}
	  ]
	}`

	var ex TenderExtraction
	require.NoError(t, json.Unmarshal([]byte(raw), &ex))

	assert.Equal(t, "123", ex.Tender.Number.String())
	assert.Equal(t, "7701234567", ex.Customer.INN.String())
	require.Len(t, ex.Items, 1)
	assert.Equal(t, "100", ex.Items[0].Quantity.Value.String())
	assert.Equal(t, "500", ex.Items[0].Specifications["Листов"].String())
	require.NotNil(t, ex.Items[0].EstimatedPrice)
	assert.Equal(t, "350", ex.Items[0].EstimatedPrice.String())
}

func TestItem_Describe(t *testing.T) {
	t.Parallel()

	it := Item{
		Name: "Бумага А4",
		Specifications: map[string]FlexString{
			"Плотность": "80 г/м2",
			"Белизна":   "146",
		},
	}

	want := "Наименование товара: Бумага А4\n" +
		"Технические характеристики товара:\n" +
		"Белизна: 146\n" +
		"Плотность: 80 г/м2"
	assert.Equal(t, want, it.Describe())
}
