package awhere

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const weatherBasePath = "/v2/weather"

// soilDepthSuffix is the trailing text aWhere appends to soil depth labels;
// it is stripped so the depth column holds the bare range in meters.
const soilDepthSuffix = " m below ground"

// Norm is one day of long-term weather norms flattened into tabular columns.
// Unit columns from the raw payload are dropped; the names encode the units.
type Norm struct {
	Day                  string  `json:"day"`
	FieldID              string  `json:"field_id,omitempty"`
	MeanTempAvgC         float64 `json:"mean_temp_avg_cels"`
	MeanTempStdDevC      float64 `json:"mean_temp_std_dev_cels"`
	MaxTempAvgC          float64 `json:"max_temp_avg_cels"`
	MaxTempStdDevC       float64 `json:"max_temp_std_dev_cels"`
	MinTempAvgC          float64 `json:"min_temp_avg_cels"`
	MinTempStdDevC       float64 `json:"min_temp_std_dev_cels"`
	PrecipAvgMM          float64 `json:"precip_avg_mm"`
	PrecipStdDevMM       float64 `json:"precip_std_dev_mm"`
	SolarAvgWhM2         float64 `json:"solar_avg_w_h_per_m2"`
	SolarStdDevWhM2      float64 `json:"solar_std_dev_w_h_per_m2"`
	MinHumidityAvgPct    float64 `json:"min_humidity_avg_pct"`
	MinHumidityStdDevPct float64 `json:"min_humidity_std_dev_pct"`
	MaxHumidityAvgPct    float64 `json:"max_humidity_avg_pct"`
	MaxHumidityStdDevPct float64 `json:"max_humidity_std_dev_pct"`
	DailyMaxWindAvgMS    float64 `json:"daily_max_wind_avg_m_per_sec"`
	DailyMaxWindStdDevMS float64 `json:"daily_max_wind_std_dev_m_per_sec"`
	AverageWindMS        float64 `json:"average_wind_m_per_sec"`
	AverageWindStdDevMS  float64 `json:"average_wind_std_dev_m_per_sec"`
	Longitude            float64 `json:"longitude"`
	Latitude             float64 `json:"latitude"`
}

// Observation is one day of observed weather.
type Observation struct {
	Date              string  `json:"date"`
	FieldID           string  `json:"field_id,omitempty"`
	TempMaxC          float64 `json:"temp_max_cels"`
	TempMinC          float64 `json:"temp_min_cels"`
	PrecipAmountMM    float64 `json:"precip_amount_mm"`
	SolarEnergyWhM2   float64 `json:"solar_energy_w_h_per_m2"`
	RelHumidityAvgPct float64 `json:"rel_humidity_avg_pct"`
	RelHumidityMaxPct float64 `json:"rel_humidity_max_pct"`
	RelHumidityMinPct float64 `json:"rel_humidity_min_pct"`
	WindMorningMaxMS  float64 `json:"wind_morning_max_m_per_sec"`
	WindDayMaxMS      float64 `json:"wind_day_max_m_per_sec"`
	WindAvgMS         float64 `json:"wind_avg_m_per_sec"`
	Longitude         float64 `json:"longitude"`
	Latitude          float64 `json:"latitude"`
}

// ForecastBlock is a single forecast block (hourly or daily depending on the
// requested block size).
type ForecastBlock struct {
	Date             string  `json:"date"`
	StartTime        string  `json:"start_time"`
	EndTime          string  `json:"end_time"`
	ConditionsCode   string  `json:"conditions_code"`
	ConditionsText   string  `json:"conditions_text"`
	TempMaxC         float64 `json:"temp_max_cels"`
	TempMinC         float64 `json:"temp_min_cels"`
	PrecipChancePct  float64 `json:"precip_chance_pct"`
	PrecipAmountMM   float64 `json:"precip_amount_mm"`
	SkyCloudCoverPct float64 `json:"sky_cloud_cover_pct"`
	SkySunshinePct   float64 `json:"sky_sunshine_pct"`
	SolarEnergyWhM2  float64 `json:"solar_energy_w_h_per_m2"`
	RelHumidityAvg   float64 `json:"rel_humidity_avg_pct"`
	RelHumidityMax   float64 `json:"rel_humidity_max_pct"`
	RelHumidityMin   float64 `json:"rel_humidity_min_pct"`
	WindAvgMS        float64 `json:"wind_avg_m_per_sec"`
	WindMaxMS        float64 `json:"wind_max_m_per_sec"`
	WindMinMS        float64 `json:"wind_min_m_per_sec"`
	WindBearingDeg   float64 `json:"wind_bearing_deg"`
	WindDirection    string  `json:"wind_direction_compass"`
	DewPointC        float64 `json:"dew_point_cels"`
	Longitude        float64 `json:"longitude"`
	Latitude         float64 `json:"latitude"`
}

// SoilForecast is the per-depth soil temperature and moisture forecast for
// one day, the two depth series merged on the depth label.
type SoilForecast struct {
	Date               string  `json:"date"`
	GroundDepthM       string  `json:"ground_depth_m"`
	SoilTempAvgC       float64 `json:"soil_temp_avg_cels"`
	SoilTempMaxC       float64 `json:"soil_temp_max_cels"`
	SoilTempMinC       float64 `json:"soil_temp_min_cels"`
	SoilMoistureAvgPct float64 `json:"soil_moisture_avg_pct"`
	SoilMoistureMaxPct float64 `json:"soil_moisture_max_pct"`
	SoilMoistureMinPct float64 `json:"soil_moisture_min_pct"`
	Longitude          float64 `json:"longitude"`
	Latitude           float64 `json:"latitude"`
}

// Forecast holds both tables extracted from a forecast response.
type Forecast struct {
	Main []ForecastBlock
	Soil []SoilForecast
}

// ForecastOptions controls forecast paging and block size. A zero BlockSize
// selects daily blocks (24 hours).
type ForecastOptions struct {
	Page      PageOptions
	BlockSize int
}

// LocationNorms returns long-term norms for a coordinate. The range defaults
// to January 1 when no start day is given.
func (c *Client) LocationNorms(ctx context.Context, loc Location, days DayRange, page PageOptions) ([]Norm, error) {
	return c.norms(ctx, weatherBasePath+"/locations/"+loc.pathSegment(), days, page)
}

// FieldNorms returns long-term norms for a field created in the account.
func (c *Client) FieldNorms(ctx context.Context, fieldID string, days DayRange, page PageOptions) ([]Norm, error) {
	return c.norms(ctx, weatherBasePath+"/fields/"+url.PathEscape(fieldID), days, page)
}

func (c *Client) norms(ctx context.Context, base string, days DayRange, page PageOptions) ([]Norm, error) {
	if days.Start == "" {
		days.Start = "01-01"
	}
	path := base + "/norms/" + days.Start
	if days.End != "" {
		path += "," + days.End
	}

	body, err := c.get(ctx, path, page.values())
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Norms []normPayload `json:"norms"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode norms response: %w", err)
	}
	if envelope.Norms == nil {
		var single normPayload
		if err := json.Unmarshal(body, &single); err != nil {
			return nil, fmt.Errorf("decode norms response: %w", err)
		}
		envelope.Norms = []normPayload{single}
	}

	rows := make([]Norm, 0, len(envelope.Norms))
	for _, p := range envelope.Norms {
		rows = append(rows, p.flatten())
	}
	return rows, nil
}

// LocationObservations returns observed weather for a coordinate. Without a
// day range the API serves the trailing 7 days.
func (c *Client) LocationObservations(ctx context.Context, loc Location, days DayRange, page PageOptions) ([]Observation, error) {
	return c.observations(ctx, weatherBasePath+"/locations/"+loc.pathSegment(), days, page)
}

// FieldObservations returns observed weather for a field.
func (c *Client) FieldObservations(ctx context.Context, fieldID string, days DayRange, page PageOptions) ([]Observation, error) {
	return c.observations(ctx, weatherBasePath+"/fields/"+url.PathEscape(fieldID), days, page)
}

func (c *Client) observations(ctx context.Context, base string, days DayRange, page PageOptions) ([]Observation, error) {
	path := base + "/observations"
	query := page.values()
	switch {
	case days.Start != "" && days.End != "":
		path += "/" + days.Start + "," + days.End
	case days.Start != "":
		path += "/" + days.Start
		query = nil
	case days.End != "":
		path += "/" + days.End
		query = nil
	}

	body, err := c.get(ctx, path, query)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Observations []observationPayload `json:"observations"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode observations response: %w", err)
	}
	if envelope.Observations == nil {
		var single observationPayload
		if err := json.Unmarshal(body, &single); err != nil {
			return nil, fmt.Errorf("decode observations response: %w", err)
		}
		envelope.Observations = []observationPayload{single}
	}

	rows := make([]Observation, 0, len(envelope.Observations))
	for _, p := range envelope.Observations {
		rows = append(rows, p.flatten())
	}
	return rows, nil
}

// LocationForecast returns the forecast for a coordinate, split into the
// main and soil tables.
func (c *Client) LocationForecast(ctx context.Context, loc Location, days DayRange, opts ForecastOptions) (*Forecast, error) {
	return c.forecast(ctx, weatherBasePath+"/locations/"+loc.pathSegment(), days, opts)
}

// FieldForecast returns the forecast for a field.
func (c *Client) FieldForecast(ctx context.Context, fieldID string, days DayRange, opts ForecastOptions) (*Forecast, error) {
	return c.forecast(ctx, weatherBasePath+"/fields/"+url.PathEscape(fieldID), days, opts)
}

func (c *Client) forecast(ctx context.Context, base string, days DayRange, opts ForecastOptions) (*Forecast, error) {
	path := base + "/forecasts"
	switch {
	case days.Start != "" && days.End != "":
		path += "/" + days.Start + "," + days.End
	case days.Start != "":
		path += "/" + days.Start
	case days.End != "":
		path += "/" + days.End
	}

	blockSize := opts.BlockSize
	if blockSize <= 0 {
		blockSize = 24
	}
	query := opts.Page.values()
	query.Set("blockSize", strconv.Itoa(blockSize))

	body, err := c.get(ctx, path, query)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Forecasts []forecastDayPayload `json:"forecasts"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode forecast response: %w", err)
	}
	if envelope.Forecasts == nil {
		var single forecastDayPayload
		if err := json.Unmarshal(body, &single); err != nil {
			return nil, fmt.Errorf("decode forecast response: %w", err)
		}
		envelope.Forecasts = []forecastDayPayload{single}
	}

	f := &Forecast{}
	for _, day := range envelope.Forecasts {
		f.Main = append(f.Main, day.flattenMain()...)
		f.Soil = append(f.Soil, day.flattenSoil()...)
	}
	return f, nil
}

// Raw payload shapes, mirroring the nested aWhere JSON.

type statPayload struct {
	Average float64 `json:"average"`
	StdDev  float64 `json:"stdDev"`
	Units   string  `json:"units"`
}

type amountPayload struct {
	Amount float64 `json:"amount"`
	Units  string  `json:"units"`
}

type locationPayload struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	FieldID   string  `json:"fieldId"`
}

type normPayload struct {
	Day           string          `json:"day"`
	Location      locationPayload `json:"location"`
	MeanTemp      statPayload     `json:"meanTemp"`
	MaxTemp       statPayload     `json:"maxTemp"`
	MinTemp       statPayload     `json:"minTemp"`
	Precipitation statPayload     `json:"precipitation"`
	Solar         statPayload     `json:"solar"`
	MinHumidity   statPayload     `json:"minHumidity"`
	MaxHumidity   statPayload     `json:"maxHumidity"`
	DailyMaxWind  statPayload     `json:"dailyMaxWind"`
	AverageWind   statPayload     `json:"averageWind"`
}

func (p normPayload) flatten() Norm {
	return Norm{
		Day:                  p.Day,
		FieldID:              p.Location.FieldID,
		MeanTempAvgC:         p.MeanTemp.Average,
		MeanTempStdDevC:      p.MeanTemp.StdDev,
		MaxTempAvgC:          p.MaxTemp.Average,
		MaxTempStdDevC:       p.MaxTemp.StdDev,
		MinTempAvgC:          p.MinTemp.Average,
		MinTempStdDevC:       p.MinTemp.StdDev,
		PrecipAvgMM:          p.Precipitation.Average,
		PrecipStdDevMM:       p.Precipitation.StdDev,
		SolarAvgWhM2:         p.Solar.Average,
		SolarStdDevWhM2:      p.Solar.StdDev,
		MinHumidityAvgPct:    p.MinHumidity.Average,
		MinHumidityStdDevPct: p.MinHumidity.StdDev,
		MaxHumidityAvgPct:    p.MaxHumidity.Average,
		MaxHumidityStdDevPct: p.MaxHumidity.StdDev,
		DailyMaxWindAvgMS:    p.DailyMaxWind.Average,
		DailyMaxWindStdDevMS: p.DailyMaxWind.StdDev,
		AverageWindMS:        p.AverageWind.Average,
		AverageWindStdDevMS:  p.AverageWind.StdDev,
		Longitude:            p.Location.Longitude,
		Latitude:             p.Location.Latitude,
	}
}

type observationPayload struct {
	Date         string          `json:"date"`
	Location     locationPayload `json:"location"`
	Temperatures struct {
		Max   float64 `json:"max"`
		Min   float64 `json:"min"`
		Units string  `json:"units"`
	} `json:"temperatures"`
	Precipitation    amountPayload `json:"precipitation"`
	Solar            amountPayload `json:"solar"`
	RelativeHumidity struct {
		Average float64 `json:"average"`
		Max     float64 `json:"max"`
		Min     float64 `json:"min"`
	} `json:"relativeHumidity"`
	Wind struct {
		MorningMax float64 `json:"morningMax"`
		DayMax     float64 `json:"dayMax"`
		Average    float64 `json:"average"`
		Units      string  `json:"units"`
	} `json:"wind"`
}

func (p observationPayload) flatten() Observation {
	return Observation{
		Date:              p.Date,
		FieldID:           p.Location.FieldID,
		TempMaxC:          p.Temperatures.Max,
		TempMinC:          p.Temperatures.Min,
		PrecipAmountMM:    p.Precipitation.Amount,
		SolarEnergyWhM2:   p.Solar.Amount,
		RelHumidityAvgPct: p.RelativeHumidity.Average,
		RelHumidityMaxPct: p.RelativeHumidity.Max,
		RelHumidityMinPct: p.RelativeHumidity.Min,
		WindMorningMaxMS:  p.Wind.MorningMax,
		WindDayMaxMS:      p.Wind.DayMax,
		WindAvgMS:         p.Wind.Average,
		Longitude:         p.Location.Longitude,
		Latitude:          p.Location.Latitude,
	}
}

type soilDepthPayload struct {
	Depth   string  `json:"depth"`
	Average float64 `json:"average"`
	Max     float64 `json:"max"`
	Min     float64 `json:"min"`
	Units   string  `json:"units"`
}

type forecastBlockPayload struct {
	StartTime      string `json:"startTime"`
	EndTime        string `json:"endTime"`
	ConditionsCode string `json:"conditionsCode"`
	ConditionsText string `json:"conditionsText"`
	Temperatures   struct {
		Max   float64 `json:"max"`
		Min   float64 `json:"min"`
		Units string  `json:"units"`
	} `json:"temperatures"`
	Precipitation struct {
		Chance float64 `json:"chance"`
		Amount float64 `json:"amount"`
		Units  string  `json:"units"`
	} `json:"precipitation"`
	Sky struct {
		CloudCover float64 `json:"cloudCover"`
		Sunshine   float64 `json:"sunshine"`
	} `json:"sky"`
	Solar            amountPayload `json:"solar"`
	RelativeHumidity struct {
		Average float64 `json:"average"`
		Max     float64 `json:"max"`
		Min     float64 `json:"min"`
	} `json:"relativeHumidity"`
	Wind struct {
		Average   float64 `json:"average"`
		Max       float64 `json:"max"`
		Min       float64 `json:"min"`
		Bearing   float64 `json:"bearing"`
		Direction string  `json:"direction"`
		Units     string  `json:"units"`
	} `json:"wind"`
	DewPoint         amountPayload      `json:"dewPoint"`
	SoilTemperatures []soilDepthPayload `json:"soilTemperatures"`
	SoilMoisture     []soilDepthPayload `json:"soilMoisture"`
}

type forecastDayPayload struct {
	Date     string                 `json:"date"`
	Location locationPayload        `json:"location"`
	Forecast []forecastBlockPayload `json:"forecast"`
}

func (p forecastDayPayload) flattenMain() []ForecastBlock {
	rows := make([]ForecastBlock, 0, len(p.Forecast))
	for _, blk := range p.Forecast {
		rows = append(rows, ForecastBlock{
			Date:             p.Date,
			StartTime:        blk.StartTime,
			EndTime:          blk.EndTime,
			ConditionsCode:   blk.ConditionsCode,
			ConditionsText:   blk.ConditionsText,
			TempMaxC:         blk.Temperatures.Max,
			TempMinC:         blk.Temperatures.Min,
			PrecipChancePct:  blk.Precipitation.Chance,
			PrecipAmountMM:   blk.Precipitation.Amount,
			SkyCloudCoverPct: blk.Sky.CloudCover,
			SkySunshinePct:   blk.Sky.Sunshine,
			SolarEnergyWhM2:  blk.Solar.Amount,
			RelHumidityAvg:   blk.RelativeHumidity.Average,
			RelHumidityMax:   blk.RelativeHumidity.Max,
			RelHumidityMin:   blk.RelativeHumidity.Min,
			WindAvgMS:        blk.Wind.Average,
			WindMaxMS:        blk.Wind.Max,
			WindMinMS:        blk.Wind.Min,
			WindBearingDeg:   blk.Wind.Bearing,
			WindDirection:    blk.Wind.Direction,
			DewPointC:        blk.DewPoint.Amount,
			Longitude:        p.Location.Longitude,
			Latitude:         p.Location.Latitude,
		})
	}
	return rows
}

// flattenSoil merges the soil temperature and moisture series of the first
// forecast block on the depth label, one row per depth.
func (p forecastDayPayload) flattenSoil() []SoilForecast {
	if len(p.Forecast) == 0 {
		return nil
	}
	blk := p.Forecast[0]

	moisture := make(map[string]soilDepthPayload, len(blk.SoilMoisture))
	for _, m := range blk.SoilMoisture {
		moisture[m.Depth] = m
	}

	rows := make([]SoilForecast, 0, len(blk.SoilTemperatures))
	for _, temp := range blk.SoilTemperatures {
		row := SoilForecast{
			Date:         p.Date,
			GroundDepthM: strings.TrimSuffix(temp.Depth, soilDepthSuffix),
			SoilTempAvgC: temp.Average,
			SoilTempMaxC: temp.Max,
			SoilTempMinC: temp.Min,
			Longitude:    p.Location.Longitude,
			Latitude:     p.Location.Latitude,
		}
		if m, ok := moisture[temp.Depth]; ok {
			row.SoilMoistureAvgPct = m.Average
			row.SoilMoistureMaxPct = m.Max
			row.SoilMoistureMinPct = m.Min
		}
		rows = append(rows, row)
	}
	return rows
}
