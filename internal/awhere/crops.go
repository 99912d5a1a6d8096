package awhere

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// Crop is an entry in the aWhere crop catalog.
type Crop struct {
	ID      string `json:"crop_id"`
	Name    string `json:"crop_name"`
	Type    string `json:"crop_type"`
	Variety string `json:"crop_variety"`
	Default bool   `json:"default_crop"`
}

type cropPayload struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Type             string `json:"type"`
	Variety          string `json:"variety"`
	IsDefaultForCrop bool   `json:"isDefaultForCrop"`
}

func (p cropPayload) flatten() Crop {
	return Crop{
		ID:      p.ID,
		Name:    p.Name,
		Type:    p.Type,
		Variety: p.Variety,
		Default: p.IsDefaultForCrop,
	}
}

// ListCrops returns one page of the crop catalog.
func (c *Client) ListCrops(ctx context.Context, page PageOptions) ([]Crop, error) {
	body, err := c.get(ctx, agronomicsBasePath+"/crops", page.values())
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Crops []cropPayload `json:"crops"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode crops response: %w", err)
	}

	crops := make([]Crop, 0, len(envelope.Crops))
	for _, p := range envelope.Crops {
		crops = append(crops, p.flatten())
	}
	return crops, nil
}

// GetCrop returns a single crop by id.
func (c *Client) GetCrop(ctx context.Context, cropID string) (*Crop, error) {
	var p cropPayload
	if err := c.getJSON(ctx, agronomicsBasePath+"/crops/"+url.PathEscape(cropID), nil, &p); err != nil {
		return nil, err
	}
	crop := p.flatten()
	return &crop, nil
}

// ListAllCrops walks the catalog page by page, up to maxPages pages. A
// non-positive maxPages uses 3 pages, matching the catalog size at the
// default page limit.
func (c *Client) ListAllCrops(ctx context.Context, pageSize, maxPages int) ([]Crop, error) {
	if pageSize <= 0 {
		pageSize = defaultPageLimit
	}
	if maxPages <= 0 {
		maxPages = 3
	}

	var all []Crop
	for pg := 0; pg < maxPages; pg++ {
		crops, err := c.ListCrops(ctx, PageOptions{Limit: pageSize, Offset: pg * pageSize})
		if err != nil {
			return nil, err
		}
		all = append(all, crops...)
		if len(crops) < pageSize {
			break
		}
	}
	return all, nil
}
