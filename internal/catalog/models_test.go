package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestProductPatch_Apply_OnlySetFields(t *testing.T) {
	p := Product{
		ID:          "p1",
		Name:        "Apple",
		Description: "tasty",
		Price:       decimal.RequireFromString("100.00"),
		Available:   5,
	}

	avail := 2
	patch := ProductPatch{Available: &avail}
	patch.Apply(&p)

	assert.Equal(t, "Apple", p.Name)
	assert.Equal(t, "tasty", p.Description)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("100.00")))
	assert.Equal(t, 2, p.Available)
}

func TestProductPatch_Apply_AllFields(t *testing.T) {
	p := Product{ID: "p1", Name: "Apple", Available: 5}

	name := "Pear"
	desc := "juicy"
	price := decimal.RequireFromString("9.99")
	avail := 7
	patch := ProductPatch{Name: &name, Description: &desc, Price: &price, Available: &avail}
	patch.Apply(&p)

	assert.Equal(t, Product{ID: "p1", Name: "Pear", Description: "juicy", Price: price, Available: 7}, p)
}

func TestProductPatch_Apply_Empty(t *testing.T) {
	p := Product{ID: "p1", Name: "Apple", Description: "tasty", Available: 5}
	orig := p

	ProductPatch{}.Apply(&p)

	assert.Equal(t, orig, p)
}
