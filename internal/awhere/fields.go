package awhere

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/google/uuid"
)

const fieldsBasePath = "/v2/fields"

// Field is a registered field location in the aWhere account.
type Field struct {
	ID              string  `json:"field_id"`
	Name            string  `json:"field_name"`
	FarmID          string  `json:"farm_id"`
	AreaAcres       float64 `json:"area_acres"`
	CenterLatitude  float64 `json:"center_latitude"`
	CenterLongitude float64 `json:"center_longitude"`
}

// CreateFieldRequest describes a field to register. An empty ID gets a
// generated one.
type CreateFieldRequest struct {
	ID              string
	Name            string
	FarmID          string
	CenterLatitude  float64
	CenterLongitude float64
	Acres           float64
}

// FieldUpdate holds the mutable field attributes. Nil members are left
// untouched.
type FieldUpdate struct {
	Name   *string
	FarmID *string
}

// ErrEmptyUpdate is returned when an update carries no changes.
var ErrEmptyUpdate = fmt.Errorf("awhere: update contains no changes")

type fieldPayload struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	FarmID      string  `json:"farmId"`
	Acres       float64 `json:"acres"`
	CenterPoint struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"centerPoint"`
}

func (p fieldPayload) flatten() Field {
	return Field{
		ID:              p.ID,
		Name:            p.Name,
		FarmID:          p.FarmID,
		AreaAcres:       p.Acres,
		CenterLatitude:  p.CenterPoint.Latitude,
		CenterLongitude: p.CenterPoint.Longitude,
	}
}

// ListFields returns the account's fields, one page at a time.
func (c *Client) ListFields(ctx context.Context, page PageOptions) ([]Field, error) {
	body, err := c.get(ctx, fieldsBasePath, page.values())
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Fields []fieldPayload `json:"fields"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode fields response: %w", err)
	}

	fields := make([]Field, 0, len(envelope.Fields))
	for _, p := range envelope.Fields {
		fields = append(fields, p.flatten())
	}
	return fields, nil
}

// GetField returns a single field by id.
func (c *Client) GetField(ctx context.Context, fieldID string) (*Field, error) {
	body, err := c.get(ctx, fieldsBasePath+"/"+url.PathEscape(fieldID), nil)
	if err != nil {
		return nil, err
	}

	var p fieldPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode field response: %w", err)
	}
	f := p.flatten()
	return &f, nil
}

// CreateField registers a field with the account.
func (c *Client) CreateField(ctx context.Context, req CreateFieldRequest) (*Field, error) {
	if req.ID == "" {
		req.ID = "field-" + uuid.NewString()
	}

	payload := map[string]interface{}{
		"id":     req.ID,
		"name":   req.Name,
		"farmId": req.FarmID,
		"centerPoint": map[string]float64{
			"latitude":  req.CenterLatitude,
			"longitude": req.CenterLongitude,
		},
		"acres": req.Acres,
	}

	var p fieldPayload
	if err := c.sendJSON(ctx, "POST", fieldsBasePath, payload, &p); err != nil {
		return nil, err
	}
	f := p.flatten()
	return &f, nil
}

// UpdateField renames or re-farms a field with JSON-patch replace operations.
func (c *Client) UpdateField(ctx context.Context, fieldID string, update FieldUpdate) (*Field, error) {
	var ops []patchOp
	if update.Name != nil {
		ops = append(ops, patchOp{Op: "replace", Path: "/name", Value: *update.Name})
	}
	if update.FarmID != nil {
		ops = append(ops, patchOp{Op: "replace", Path: "/farmId", Value: *update.FarmID})
	}
	if len(ops) == 0 {
		return nil, ErrEmptyUpdate
	}

	var p fieldPayload
	if err := c.sendJSON(ctx, "PATCH", fieldsBasePath+"/"+url.PathEscape(fieldID), ops, &p); err != nil {
		return nil, err
	}
	f := p.flatten()
	return &f, nil
}

// DeleteField removes a field from the account.
func (c *Client) DeleteField(ctx context.Context, fieldID string) error {
	return c.delete(ctx, fieldsBasePath+"/"+url.PathEscape(fieldID))
}

type patchOp struct {
	Op    string      `json:"op"`
	Path  string      `json:"path"`
	Value interface{} `json:"value"`
}
