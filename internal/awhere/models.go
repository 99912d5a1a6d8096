package awhere

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// knownModels lists the crop model ids the API currently serves. Requests
// for a single model are validated against it before hitting the network.
var knownModels = []string{
	"BarleyGenericMSU",
	"BarleyGenericNDAWN",
	"CanolaBNapusMSU",
	"CanolaBRapaMSU",
	"CanolaGenericNDAWN",
	"Cotton2600UGCE",
	"Cotton2200NCCA",
	"OatGenericMSU",
	"SugarbeetGenericNDAWN",
	"SunflowerEarlyDwarfMSU",
	"SunflowerGenericNDAWN",
	"WheatHardRedMSU",
	"WheatGenericMAWG",
	"WheatGenericNDAWN",
	"WheatGenericOSU",
	"WheatGenericVCE",
	"Corn2300ISUAbendroth",
	"Corn2500ISUAbendroth",
	"Corn2700ISUAbendroth",
	"Corn2900ISUAbendroth",
	"SorghumShortSeasonTexasAM",
	"SorghumLongSeasonTexasAM",
	"MaizeKALRO",
	"SunflowerH8998KALRO",
	"SunflowerFedhaKALRO",
	"GreenGramKALRO",
	"PotatoKALRO",
	"SorghumKALRO",
	"SoyaKALRO",
}

// ErrUnknownModel is returned for a model id outside the served catalog.
var ErrUnknownModel = fmt.Errorf("awhere: unknown model id")

// Model is a crop growth model available through the API.
type Model struct {
	ID          string `json:"model_id"`
	Name        string `json:"model_name"`
	Description string `json:"model_description"`
	Type        string `json:"model_type"`
	Source      string `json:"model_source"`
	SourceLink  string `json:"model_link"`
}

// ModelDetails is the GDD configuration of a model plus its growth stages.
type ModelDetails struct {
	ModelID      string       `json:"model_id"`
	BiofixDays   int          `json:"biofix_days"`
	GDDMethod    string       `json:"gdd_method"`
	GDDBaseTempC float64      `json:"gdd_base_temp_cels"`
	GDDMaxBoundC float64      `json:"gdd_max_boundary_cels"`
	GDDMinBoundC float64      `json:"gdd_min_boundary_cels"`
	Stages       []ModelStage `json:"stages"`
}

// ModelStage is one growth stage of a model.
type ModelStage struct {
	ModelID       string  `json:"model_id"`
	StageID       string  `json:"stage_id"`
	Name          string  `json:"stage_name"`
	Description   string  `json:"stage_description"`
	GDDThresholdC float64 `json:"gdd_threshold_cels"`
}

// StageStatus marks where a result stage sits relative to now.
type StageStatus string

const (
	StagePrevious StageStatus = "Previous"
	StageCurrent  StageStatus = "Current"
	StageNext     StageStatus = "Next"
)

// ModelResultStage is one stage row of a model run against a field.
type ModelResultStage struct {
	Status          StageStatus `json:"stage_status"`
	StageStartDate  string      `json:"stage_start_date,omitempty"`
	StageID         string      `json:"stage_id,omitempty"`
	Name            string      `json:"stage_name,omitempty"`
	Description     string      `json:"stage_description,omitempty"`
	GDDThresholdC   float64     `json:"gdd_threshold_cels,omitempty"`
	GDDAccumulatedC float64     `json:"gdd_accumulation_current_cels,omitempty"`
	GDDRemainingC   float64     `json:"gdd_remaining_next_cels,omitempty"`
}

// ModelResults is the outcome of running a model against a field, with the
// previous, current, and next stages merged into one ordered list.
type ModelResults struct {
	ModelID      string             `json:"model_id"`
	FieldID      string             `json:"field_id"`
	BiofixDate   string             `json:"biofix_date"`
	PlantingDate string             `json:"planting_date"`
	Longitude    float64            `json:"longitude"`
	Latitude     float64            `json:"latitude"`
	Stages       []ModelResultStage `json:"stages"`
}

type modelPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Source      struct {
		Name string `json:"name"`
		Link string `json:"link"`
	} `json:"source"`
}

func (p modelPayload) flatten() Model {
	return Model{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Type:        p.Type,
		Source:      p.Source.Name,
		SourceLink:  p.Source.Link,
	}
}

// validModel reports whether the id is in the served catalog.
func validModel(modelID string) bool {
	for _, id := range knownModels {
		if id == modelID {
			return true
		}
	}
	return false
}

// KnownModels returns a copy of the served model ids.
func KnownModels() []string {
	out := make([]string, len(knownModels))
	copy(out, knownModels)
	return out
}

// ListModels returns one page of the model catalog.
func (c *Client) ListModels(ctx context.Context, page PageOptions) ([]Model, error) {
	body, err := c.get(ctx, agronomicsBasePath+"/models", page.values())
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Models []modelPayload `json:"models"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode models response: %w", err)
	}

	models := make([]Model, 0, len(envelope.Models))
	for _, p := range envelope.Models {
		models = append(models, p.flatten())
	}
	return models, nil
}

// GetModel returns one model from the catalog.
func (c *Client) GetModel(ctx context.Context, modelID string) (*Model, error) {
	if !validModel(modelID) {
		return nil, fmt.Errorf("%w: %s (valid: %s)", ErrUnknownModel, modelID, strings.Join(knownModels, ", "))
	}

	var p modelPayload
	if err := c.getJSON(ctx, agronomicsBasePath+"/models/"+url.PathEscape(modelID), nil, &p); err != nil {
		return nil, err
	}
	m := p.flatten()
	return &m, nil
}

// GetModelDetails returns a model's GDD configuration and growth stages.
func (c *Client) GetModelDetails(ctx context.Context, modelID string) (*ModelDetails, error) {
	if !validModel(modelID) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, modelID)
	}

	body, err := c.get(ctx, agronomicsBasePath+"/models/"+url.PathEscape(modelID)+"/details", nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Biofix         int     `json:"biofix"`
		GDDMethod      string  `json:"gddMethod"`
		GDDBaseTemp    float64 `json:"gddBaseTemp"`
		GDDMaxBoundary float64 `json:"gddMaxBoundary"`
		GDDMinBoundary float64 `json:"gddMinBoundary"`
		Stages         []struct {
			ID           string  `json:"id"`
			Stage        string  `json:"stage"`
			Description  string  `json:"description"`
			GDDThreshold float64 `json:"gddThreshold"`
		} `json:"stages"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode model details: %w", err)
	}

	details := &ModelDetails{
		ModelID:      modelID,
		BiofixDays:   payload.Biofix,
		GDDMethod:    payload.GDDMethod,
		GDDBaseTempC: payload.GDDBaseTemp,
		GDDMaxBoundC: payload.GDDMaxBoundary,
		GDDMinBoundC: payload.GDDMinBoundary,
	}
	for _, s := range payload.Stages {
		details.Stages = append(details.Stages, ModelStage{
			ModelID:       modelID,
			StageID:       s.ID,
			Name:          s.Stage,
			Description:   s.Description,
			GDDThresholdC: s.GDDThreshold,
		})
	}
	return details, nil
}

// GetModelResults runs a model against a registered field and returns the
// previous, current, and next stage rows.
func (c *Client) GetModelResults(ctx context.Context, fieldID, modelID string) (*ModelResults, error) {
	if !validModel(modelID) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, modelID)
	}

	path := agronomicsBasePath + "/fields/" + url.PathEscape(fieldID) +
		"/models/" + url.PathEscape(modelID) + "/results"
	body, err := c.get(ctx, path, nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		ModelID        string               `json:"modelId"`
		BiofixDate     string               `json:"biofixDate"`
		PlantingDate   string               `json:"plantingDate"`
		Location       locationPayload      `json:"location"`
		PreviousStages []resultStagePayload `json:"previousStages"`
		CurrentStage   *resultStagePayload  `json:"currentStage"`
		NextStage      *resultStagePayload  `json:"nextStage"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode model results: %w", err)
	}

	results := &ModelResults{
		ModelID:      payload.ModelID,
		FieldID:      payload.Location.FieldID,
		BiofixDate:   payload.BiofixDate,
		PlantingDate: payload.PlantingDate,
		Longitude:    payload.Location.Longitude,
		Latitude:     payload.Location.Latitude,
	}
	for _, s := range payload.PreviousStages {
		results.Stages = append(results.Stages, s.flatten(StagePrevious))
	}
	if payload.CurrentStage != nil {
		results.Stages = append(results.Stages, payload.CurrentStage.flatten(StageCurrent))
	}
	if payload.NextStage != nil {
		results.Stages = append(results.Stages, payload.NextStage.flatten(StageNext))
	}
	return results, nil
}

type resultStagePayload struct {
	Date            string  `json:"date"`
	ID              string  `json:"id"`
	Stage           string  `json:"stage"`
	Description     string  `json:"description"`
	GDDThreshold    float64 `json:"gddThreshold"`
	AccumulatedGDDs float64 `json:"accumulatedGdds"`
	GDDRemaining    float64 `json:"gddRemaining"`
}

func (p resultStagePayload) flatten(status StageStatus) ModelResultStage {
	return ModelResultStage{
		Status:          status,
		StageStartDate:  p.Date,
		StageID:         p.ID,
		Name:            p.Stage,
		Description:     p.Description,
		GDDThresholdC:   p.GDDThreshold,
		GDDAccumulatedC: p.AccumulatedGDDs,
		GDDRemainingC:   p.GDDRemaining,
	}
}
