package awhere

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

const agronomicsBasePath = "/v2/agronomics"

// AgronomicValue is one day of agronomic values. Rolling columns are only
// populated on multi-day requests.
type AgronomicValue struct {
	Date              string  `json:"date"`
	GDDDailyTotalC    float64 `json:"gdd_daily_total_cels"`
	PPETDailyTotal    float64 `json:"ppet_daily_total"`
	PETDailyTotalMM   float64 `json:"pet_daily_total_mm"`
	GDDRollingTotalC  float64 `json:"gdd_rolling_total_cels,omitempty"`
	PPETRollingTotal  float64 `json:"ppet_rolling_total,omitempty"`
	PrecipRollingMM   float64 `json:"precip_rolling_total_mm,omitempty"`
	PETRollingTotalMM float64 `json:"pet_rolling_total_mm,omitempty"`
	Longitude         float64 `json:"longitude"`
	Latitude          float64 `json:"latitude"`
}

// AgronomicAccumulation is the range total across a multi-day request.
type AgronomicAccumulation struct {
	StartDay           string  `json:"start_day"`
	EndDay             string  `json:"end_day"`
	GDDRangeTotalC     float64 `json:"gdd_range_total_cels"`
	PPETRangeTotal     float64 `json:"ppet_range_total"`
	PrecipRangeTotalMM float64 `json:"precip_range_total_mm"`
	PETRangeTotalMM    float64 `json:"pet_range_total_mm"`
	Longitude          float64 `json:"longitude"`
	Latitude           float64 `json:"latitude"`
}

// AgronomicValues carries the per-day rows and, for multi-day requests, the
// range total.
type AgronomicValues struct {
	Daily []AgronomicValue
	Total *AgronomicAccumulation
}

// AgronomicNorm is one day of long-term agronomic norms.
type AgronomicNorm struct {
	Day                    string  `json:"day"`
	GDDDailyAverageC       float64 `json:"gdd_daily_average_cels"`
	GDDDailyStdDevC        float64 `json:"gdd_daily_average_std_dev_cels"`
	PETDailyAverageMM      float64 `json:"pet_daily_average_mm"`
	PETDailyStdDevMM       float64 `json:"pet_daily_average_std_dev_mm"`
	PPETDailyAverage       float64 `json:"ppet_daily_average"`
	PPETDailyStdDev        float64 `json:"ppet_daily_average_std_dev"`
	GDDRollingAverage      float64 `json:"gdd_rolling_total_average,omitempty"`
	GDDRollingStdDev       float64 `json:"gdd_rolling_total_average_std_dev,omitempty"`
	PrecipRollingAverageMM float64 `json:"precip_rolling_total_average_mm,omitempty"`
	PrecipRollingStdDevMM  float64 `json:"precip_rolling_total_average_std_dev_mm,omitempty"`
	PETRollingAverageMM    float64 `json:"pet_rolling_total_average_mm,omitempty"`
	PETRollingStdDevMM     float64 `json:"pet_rolling_total_average_std_dev_mm,omitempty"`
	PPETRollingAverage     float64 `json:"ppet_rolling_total_average,omitempty"`
	PPETRollingStdDev      float64 `json:"ppet_rolling_total_average_std_dev,omitempty"`
	Longitude              float64 `json:"longitude"`
	Latitude               float64 `json:"latitude"`
}

// AgronomicNormTotal is the averaged range accumulation across a multi-day
// norms request.
type AgronomicNormTotal struct {
	StartDay            string  `json:"start_day"`
	EndDay              string  `json:"end_day"`
	GDDRangeAverageC    float64 `json:"gdd_range_average_total_cels"`
	GDDRangeStdDevC     float64 `json:"gdd_range_average_total_std_dev_cels"`
	PrecipRangeAvgMM    float64 `json:"precip_range_average_total_mm"`
	PrecipRangeStdDevMM float64 `json:"precip_range_average_total_std_dev_mm"`
	PETRangeAverageMM   float64 `json:"pet_range_average_total_mm"`
	PETRangeStdDev      float64 `json:"pet_range_average_total_std_dev"`
	PPETRangeDailyAvg   float64 `json:"ppet_range_daily_average"`
	PPETRangeStdDev     float64 `json:"ppet_range_daily_average_std_dev"`
	Longitude           float64 `json:"longitude"`
	Latitude            float64 `json:"latitude"`
}

// AgronomicNorms carries per-day norm rows and, for multi-day requests, the
// averaged range total.
type AgronomicNorms struct {
	Daily []AgronomicNorm
	Total *AgronomicNormTotal
}

// LocationAgronomicValues returns agronomic values for a coordinate. A range
// with only a start day serves that single day.
func (c *Client) LocationAgronomicValues(ctx context.Context, loc Location, days DayRange, page PageOptions) (*AgronomicValues, error) {
	return c.agronomicValues(ctx, agronomicsBasePath+"/locations/"+loc.pathSegment(), days, page)
}

// FieldAgronomicValues returns agronomic values for a field.
func (c *Client) FieldAgronomicValues(ctx context.Context, fieldID string, days DayRange, page PageOptions) (*AgronomicValues, error) {
	return c.agronomicValues(ctx, agronomicsBasePath+"/fields/"+url.PathEscape(fieldID), days, page)
}

func (c *Client) agronomicValues(ctx context.Context, base string, days DayRange, page PageOptions) (*AgronomicValues, error) {
	path, query := agronomicsRequest(base+"/agronomicvalues", days, page)

	body, err := c.get(ctx, path, query)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Location      locationPayload        `json:"location"`
		Date          string                 `json:"date"`
		GDD           float64                `json:"gdd"`
		PPET          float64                `json:"ppet"`
		PET           amountPayload          `json:"pet"`
		DailyValues   []agronomicDayPayload  `json:"dailyValues"`
		Accumulations *accumulationsPayload  `json:"accumulations"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode agronomic values: %w", err)
	}

	out := &AgronomicValues{}
	if len(payload.DailyValues) == 0 {
		out.Daily = []AgronomicValue{{
			Date:            payload.Date,
			GDDDailyTotalC:  payload.GDD,
			PPETDailyTotal:  payload.PPET,
			PETDailyTotalMM: payload.PET.Amount,
			Longitude:       payload.Location.Longitude,
			Latitude:        payload.Location.Latitude,
		}}
		return out, nil
	}

	for _, d := range payload.DailyValues {
		out.Daily = append(out.Daily, AgronomicValue{
			Date:              d.Date,
			GDDDailyTotalC:    d.GDD,
			PPETDailyTotal:    d.PPET,
			PETDailyTotalMM:   d.PET.Amount,
			GDDRollingTotalC:  d.AccumulatedGDD,
			PPETRollingTotal:  d.AccumulatedPPET,
			PrecipRollingMM:   d.AccumulatedPrecipitation.Amount,
			PETRollingTotalMM: d.AccumulatedPET.Amount,
			Longitude:         payload.Location.Longitude,
			Latitude:          payload.Location.Latitude,
		})
	}
	if payload.Accumulations != nil {
		out.Total = &AgronomicAccumulation{
			StartDay:           payload.DailyValues[0].Date,
			EndDay:             payload.DailyValues[len(payload.DailyValues)-1].Date,
			GDDRangeTotalC:     payload.Accumulations.GDD,
			PPETRangeTotal:     payload.Accumulations.PPET,
			PrecipRangeTotalMM: payload.Accumulations.Precipitation.Amount,
			PETRangeTotalMM:    payload.Accumulations.PET.Amount,
			Longitude:          payload.Location.Longitude,
			Latitude:           payload.Location.Latitude,
		}
	}
	return out, nil
}

// LocationAgronomicNorms returns long-term agronomic norms for a coordinate.
func (c *Client) LocationAgronomicNorms(ctx context.Context, loc Location, days DayRange, page PageOptions) (*AgronomicNorms, error) {
	return c.agronomicNorms(ctx, agronomicsBasePath+"/locations/"+loc.pathSegment(), days, page)
}

// FieldAgronomicNorms returns long-term agronomic norms for a field.
func (c *Client) FieldAgronomicNorms(ctx context.Context, fieldID string, days DayRange, page PageOptions) (*AgronomicNorms, error) {
	return c.agronomicNorms(ctx, agronomicsBasePath+"/fields/"+url.PathEscape(fieldID), days, page)
}

func (c *Client) agronomicNorms(ctx context.Context, base string, days DayRange, page PageOptions) (*AgronomicNorms, error) {
	path, query := agronomicsRequest(base+"/agronomicnorms", days, page)

	body, err := c.get(ctx, path, query)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Location             locationPayload           `json:"location"`
		Day                  string                    `json:"day"`
		GDD                  statPayload               `json:"gdd"`
		PPET                 statPayload               `json:"ppet"`
		PET                  statPayload               `json:"pet"`
		DailyNorms           []agronomicNormPayload    `json:"dailyNorms"`
		AverageAccumulations *normAccumulationsPayload `json:"averageAccumulations"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode agronomic norms: %w", err)
	}

	out := &AgronomicNorms{}
	if len(payload.DailyNorms) == 0 {
		out.Daily = []AgronomicNorm{{
			Day:               payload.Day,
			GDDDailyAverageC:  payload.GDD.Average,
			GDDDailyStdDevC:   payload.GDD.StdDev,
			PETDailyAverageMM: payload.PET.Average,
			PETDailyStdDevMM:  payload.PET.StdDev,
			PPETDailyAverage:  payload.PPET.Average,
			PPETDailyStdDev:   payload.PPET.StdDev,
			Longitude:         payload.Location.Longitude,
			Latitude:          payload.Location.Latitude,
		}}
		return out, nil
	}

	for _, d := range payload.DailyNorms {
		out.Daily = append(out.Daily, AgronomicNorm{
			Day:                    d.Day,
			GDDDailyAverageC:       d.GDD.Average,
			GDDDailyStdDevC:        d.GDD.StdDev,
			PETDailyAverageMM:      d.PET.Average,
			PETDailyStdDevMM:       d.PET.StdDev,
			PPETDailyAverage:       d.PPET.Average,
			PPETDailyStdDev:        d.PPET.StdDev,
			GDDRollingAverage:      d.AccumulatedGDD.Average,
			GDDRollingStdDev:       d.AccumulatedGDD.StdDev,
			PrecipRollingAverageMM: d.AccumulatedPrecipitation.Average,
			PrecipRollingStdDevMM:  d.AccumulatedPrecipitation.StdDev,
			PETRollingAverageMM:    d.AccumulatedPET.Average,
			PETRollingStdDevMM:     d.AccumulatedPET.StdDev,
			PPETRollingAverage:     d.AccumulatedPPET.Average,
			PPETRollingStdDev:      d.AccumulatedPPET.StdDev,
			Longitude:              payload.Location.Longitude,
			Latitude:               payload.Location.Latitude,
		})
	}
	if payload.AverageAccumulations != nil {
		out.Total = &AgronomicNormTotal{
			StartDay:            payload.DailyNorms[0].Day,
			EndDay:              payload.DailyNorms[len(payload.DailyNorms)-1].Day,
			GDDRangeAverageC:    payload.AverageAccumulations.GDD.Average,
			GDDRangeStdDevC:     payload.AverageAccumulations.GDD.StdDev,
			PrecipRangeAvgMM:    payload.AverageAccumulations.Precipitation.Average,
			PrecipRangeStdDevMM: payload.AverageAccumulations.Precipitation.StdDev,
			PETRangeAverageMM:   payload.AverageAccumulations.PET.Average,
			PETRangeStdDev:      payload.AverageAccumulations.PET.StdDev,
			PPETRangeDailyAvg:   payload.AverageAccumulations.PPET.Average,
			PPETRangeStdDev:     payload.AverageAccumulations.PPET.StdDev,
			Longitude:           payload.Location.Longitude,
			Latitude:            payload.Location.Latitude,
		}
	}
	return out, nil
}

// agronomicsRequest builds the path and query for a values or norms request.
// A single day goes in the path without paging; a range appends the end day
// and pages the response.
func agronomicsRequest(base string, days DayRange, page PageOptions) (string, url.Values) {
	if days.Start == "" {
		days.Start = "01-01"
	}
	path := base + "/" + days.Start
	if days.End == "" {
		return path, nil
	}
	return path + "," + days.End, page.values()
}

type agronomicDayPayload struct {
	Date                     string        `json:"date"`
	GDD                      float64       `json:"gdd"`
	PPET                     float64       `json:"ppet"`
	PET                      amountPayload `json:"pet"`
	AccumulatedGDD           float64       `json:"accumulatedGdd"`
	AccumulatedPPET          float64       `json:"accumulatedPpet"`
	AccumulatedPrecipitation amountPayload `json:"accumulatedPrecipitation"`
	AccumulatedPET           amountPayload `json:"accumulatedPet"`
}

type accumulationsPayload struct {
	GDD           float64       `json:"gdd"`
	PPET          float64       `json:"ppet"`
	Precipitation amountPayload `json:"precipitation"`
	PET           amountPayload `json:"pet"`
}

type agronomicNormPayload struct {
	Day                      string      `json:"day"`
	GDD                      statPayload `json:"gdd"`
	PPET                     statPayload `json:"ppet"`
	PET                      statPayload `json:"pet"`
	AccumulatedGDD           statPayload `json:"accumulatedGdd"`
	AccumulatedPPET          statPayload `json:"accumulatedPpet"`
	AccumulatedPrecipitation statPayload `json:"accumulatedPrecipitation"`
	AccumulatedPET           statPayload `json:"accumulatedPet"`
}

type normAccumulationsPayload struct {
	GDD           statPayload `json:"gdd"`
	PPET          statPayload `json:"ppet"`
	Precipitation statPayload `json:"precipitation"`
	PET           statPayload `json:"pet"`
}
