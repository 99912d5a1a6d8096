package awhere

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// CurrentPlanting selects the most recent planting instead of a concrete id.
const CurrentPlanting = "current"

// Planting records a crop planted in a field, with actual and projected
// yield and harvest dates.
type Planting struct {
	ID                      int64   `json:"planting_id"`
	CropID                  string  `json:"crop_id"`
	FieldID                 string  `json:"field_id"`
	PlantingDate            string  `json:"planting_date"`
	YieldAmountActual       float64 `json:"yield_amount_actual"`
	YieldAmountActualUnits  string  `json:"yield_amount_actual_units"`
	HarvestDateActual       string  `json:"harvest_date_actual"`
	YieldAmountProjected    float64 `json:"yield_amount_projected"`
	YieldAmountProjectedUni string  `json:"yield_amount_projected_units"`
	HarvestDateProjected    string  `json:"harvest_date_projected"`
}

// PlantingDetails describes a planting to create or replace.
type PlantingDetails struct {
	Crop                 string
	PlantingDate         string
	ProjectedYieldAmount float64
	ProjectedYieldUnits  string
	ProjectedHarvestDate string
	YieldAmount          float64
	YieldUnits           string
	HarvestDate          string
}

// PlantingUpdate holds partial planting changes applied with JSON-patch
// replace operations. Nil members are left untouched.
type PlantingUpdate struct {
	Crop                 *string
	PlantingDate         *string
	ProjectedYieldAmount *float64
	ProjectedYieldUnits  *string
	ProjectedHarvestDate *string
	YieldAmount          *float64
	YieldUnits           *string
	HarvestDate          *string
}

type plantingPayload struct {
	ID           int64  `json:"id"`
	Crop         string `json:"crop"`
	Field        string `json:"field"`
	PlantingDate string `json:"plantingDate"`
	HarvestDate  string `json:"harvestDate"`
	Yield        struct {
		Amount float64 `json:"amount"`
		Units  string  `json:"units"`
	} `json:"yield"`
	Projections struct {
		Yield struct {
			Amount float64 `json:"amount"`
			Units  string  `json:"units"`
		} `json:"yield"`
		HarvestDate string `json:"harvestDate"`
	} `json:"projections"`
}

func (p plantingPayload) flatten() Planting {
	return Planting{
		ID:                      p.ID,
		CropID:                  p.Crop,
		FieldID:                 p.Field,
		PlantingDate:            p.PlantingDate,
		YieldAmountActual:       p.Yield.Amount,
		YieldAmountActualUnits:  p.Yield.Units,
		HarvestDateActual:       p.HarvestDate,
		YieldAmountProjected:    p.Projections.Yield.Amount,
		YieldAmountProjectedUni: p.Projections.Yield.Units,
		HarvestDateProjected:    p.Projections.HarvestDate,
	}
}

// ListPlantings returns plantings across all fields in the account.
func (c *Client) ListPlantings(ctx context.Context, page PageOptions) ([]Planting, error) {
	return c.listPlantings(ctx, agronomicsBasePath+"/plantings", page)
}

// ListFieldPlantings returns the plantings of one field.
func (c *Client) ListFieldPlantings(ctx context.Context, fieldID string, page PageOptions) ([]Planting, error) {
	return c.listPlantings(ctx, plantingsPath(fieldID), page)
}

func (c *Client) listPlantings(ctx context.Context, base string, page PageOptions) ([]Planting, error) {
	body, err := c.get(ctx, base, page.values())
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Plantings []plantingPayload `json:"plantings"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode plantings response: %w", err)
	}

	rows := make([]Planting, 0, len(envelope.Plantings))
	for _, p := range envelope.Plantings {
		rows = append(rows, p.flatten())
	}
	return rows, nil
}

// GetPlanting returns one planting of the account by id, or the most recent
// one when the id is CurrentPlanting.
func (c *Client) GetPlanting(ctx context.Context, plantingID string) (*Planting, error) {
	return c.getPlanting(ctx, agronomicsBasePath+"/plantings/"+url.PathEscape(plantingID))
}

// GetFieldPlanting returns one planting of a field by id, or the most recent
// one when the id is CurrentPlanting.
func (c *Client) GetFieldPlanting(ctx context.Context, fieldID, plantingID string) (*Planting, error) {
	return c.getPlanting(ctx, plantingsPath(fieldID)+"/"+url.PathEscape(plantingID))
}

func (c *Client) getPlanting(ctx context.Context, path string) (*Planting, error) {
	var p plantingPayload
	if err := c.getJSON(ctx, path, nil, &p); err != nil {
		return nil, err
	}
	row := p.flatten()
	return &row, nil
}

// CreatePlanting records a new planting in a field.
func (c *Client) CreatePlanting(ctx context.Context, fieldID string, details PlantingDetails) (*Planting, error) {
	var p plantingPayload
	if err := c.sendJSON(ctx, "POST", plantingsPath(fieldID), details.payload(), &p); err != nil {
		return nil, err
	}
	row := p.flatten()
	return &row, nil
}

// ReplacePlanting replaces a planting wholesale.
func (c *Client) ReplacePlanting(ctx context.Context, fieldID, plantingID string, details PlantingDetails) (*Planting, error) {
	var p plantingPayload
	path := plantingsPath(fieldID) + "/" + url.PathEscape(plantingID)
	if err := c.sendJSON(ctx, "PUT", path, details.payload(), &p); err != nil {
		return nil, err
	}
	row := p.flatten()
	return &row, nil
}

// UpdatePlanting applies partial planting changes.
func (c *Client) UpdatePlanting(ctx context.Context, fieldID, plantingID string, update PlantingUpdate) (*Planting, error) {
	ops := update.ops()
	if len(ops) == 0 {
		return nil, ErrEmptyUpdate
	}

	var p plantingPayload
	path := plantingsPath(fieldID) + "/" + url.PathEscape(plantingID)
	if err := c.sendJSON(ctx, "PATCH", path, ops, &p); err != nil {
		return nil, err
	}
	row := p.flatten()
	return &row, nil
}

// DeletePlanting removes a planting from a field.
func (c *Client) DeletePlanting(ctx context.Context, fieldID, plantingID string) error {
	return c.delete(ctx, plantingsPath(fieldID)+"/"+url.PathEscape(plantingID))
}

func plantingsPath(fieldID string) string {
	return agronomicsBasePath + "/fields/" + url.PathEscape(fieldID) + "/plantings"
}

func (d PlantingDetails) payload() map[string]interface{} {
	return map[string]interface{}{
		"crop":         d.Crop,
		"plantingDate": d.PlantingDate,
		"projections": map[string]interface{}{
			"yield": map[string]interface{}{
				"amount": d.ProjectedYieldAmount,
				"units":  d.ProjectedYieldUnits,
			},
			"harvestDate": d.ProjectedHarvestDate,
		},
		"yield": map[string]interface{}{
			"amount": d.YieldAmount,
			"units":  d.YieldUnits,
		},
		"harvestDate": d.HarvestDate,
	}
}

func (u PlantingUpdate) ops() []patchOp {
	var ops []patchOp
	add := func(path string, value interface{}) {
		ops = append(ops, patchOp{Op: "replace", Path: path, Value: value})
	}
	if u.Crop != nil {
		add("/crop", *u.Crop)
	}
	if u.PlantingDate != nil {
		add("/plantingDate", *u.PlantingDate)
	}
	if u.ProjectedYieldAmount != nil {
		add("/projections/yield/amount", *u.ProjectedYieldAmount)
	}
	if u.ProjectedYieldUnits != nil {
		add("/projections/yield/units", *u.ProjectedYieldUnits)
	}
	if u.ProjectedHarvestDate != nil {
		add("/projections/harvestDate", *u.ProjectedHarvestDate)
	}
	if u.YieldAmount != nil {
		add("/yield/amount", *u.YieldAmount)
	}
	if u.YieldUnits != nil {
		add("/yield/units", *u.YieldUnits)
	}
	if u.HarvestDate != nil {
		add("/harvestDate", *u.HarvestDate)
	}
	return ops
}
