package repository

import (
	"context"
	"strings"

	"github.com/cooperativa/registro/internal/schema"
	"github.com/cooperativa/registro/internal/store"
)

// Clothing manages the ropa inventory.
type Clothing struct {
	t *table[schema.ClothingItem]
}

// NewClothing returns the ropa repository.
func NewClothing(s store.Store, log ChangeRecorder) *Clothing {
	return &Clothing{t: newTable(s, log, schema.TableRopa, schema.ClothingItemFromRow)}
}

// FetchAll returns every item ordered by id.
func (c *Clothing) FetchAll(ctx context.Context) ([]schema.ClothingItem, error) {
	return c.t.list(ctx)
}

// Create inserts an item. cantidad must be positive, talle is required and
// tipo is normalised to invierno or verano.
func (c *Clothing) Create(ctx context.Context, item schema.ClothingItem) (schema.ClothingItem, error) {
	row, err := c.row(verbInsert, item)
	if err != nil {
		return schema.ClothingItem{}, err
	}
	return c.t.create(ctx, row)
}

// Update replaces an existing item.
func (c *Clothing) Update(ctx context.Context, id int64, item schema.ClothingItem) (schema.ClothingItem, error) {
	row, err := c.row(verbUpdate, item)
	if err != nil {
		return schema.ClothingItem{}, err
	}
	return c.t.update(ctx, id, row)
}

// Delete removes an item and returns it, or nil if it did not exist.
func (c *Clothing) Delete(ctx context.Context, id int64) (*schema.ClothingItem, error) {
	return c.t.remove(ctx, id, nil)
}

func (c *Clothing) row(verb string, item schema.ClothingItem) (schema.Row, error) {
	if item.Cantidad <= 0 {
		return nil, invalid(verb, schema.TableRopa, "la cantidad debe ser mayor que cero")
	}
	item.Tipo = schema.NormaliseClothingType(string(item.Tipo))
	item.Talle = strings.TrimSpace(item.Talle)
	if item.Talle == "" {
		return nil, invalid(verb, schema.TableRopa, "el talle es obligatorio")
	}
	item.ID = 0
	return item.Row(), nil
}

// Donations manages donaciones.
type Donations struct {
	t *table[schema.Donation]
}

// NewDonations returns the donaciones repository.
func NewDonations(s store.Store, log ChangeRecorder) *Donations {
	return &Donations{t: newTable(s, log, schema.TableDonaciones, schema.DonationFromRow)}
}

// FetchAll returns every donation ordered by id.
func (d *Donations) FetchAll(ctx context.Context) ([]schema.Donation, error) {
	return d.t.list(ctx)
}

// Create inserts a donation. tipo is required and cantidad must be
// positive.
func (d *Donations) Create(ctx context.Context, donation schema.Donation) (schema.Donation, error) {
	row, err := d.row(verbInsert, donation)
	if err != nil {
		return schema.Donation{}, err
	}
	return d.t.create(ctx, row)
}

// Update replaces an existing donation.
func (d *Donations) Update(ctx context.Context, id int64, donation schema.Donation) (schema.Donation, error) {
	row, err := d.row(verbUpdate, donation)
	if err != nil {
		return schema.Donation{}, err
	}
	return d.t.update(ctx, id, row)
}

// Delete removes a donation and returns it, or nil if it did not exist.
func (d *Donations) Delete(ctx context.Context, id int64) (*schema.Donation, error) {
	return d.t.remove(ctx, id, nil)
}

func (d *Donations) row(verb string, donation schema.Donation) (schema.Row, error) {
	donation.Tipo = strings.TrimSpace(donation.Tipo)
	if donation.Tipo == "" {
		return nil, invalid(verb, schema.TableDonaciones, "el tipo es obligatorio")
	}
	if donation.Cantidad <= 0 {
		return nil, invalid(verb, schema.TableDonaciones, "la cantidad debe ser mayor que cero")
	}
	donation.ID = 0
	return donation.Row(), nil
}
