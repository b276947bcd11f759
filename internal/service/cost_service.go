package service

import (
	"math"

	"byd-analyzer-go/internal/config"
)

// CostParams переопределения параметров расчета; nil означает
// использование значения по умолчанию из конфигурации
type CostParams struct {
	ElectricityPrice    *float64 `json:"electricity_price"`
	GasolinePrice       *float64 `json:"gasoline_price"`
	DieselPrice         *float64 `json:"diesel_price"`
	GasolineConsumption *float64 `json:"gasoline_consumption"`
	DieselConsumption   *float64 `json:"diesel_consumption"`
	CO2Gasoline         *float64 `json:"co2_gasoline"`
	CO2Diesel           *float64 `json:"co2_diesel"`
}

// Savings экономия относительно одного ископаемого топлива
type Savings struct {
	Amount     float64 `json:"amount"`
	Percentage float64 `json:"percentage"`
}

// CostReport сравнительный отчет стоимости и выбросов
type CostReport struct {
	Totals struct {
		DistanceKm     float64 `json:"distance_km"`
		ConsumptionKwh float64 `json:"consumption_kwh"`
	} `json:"totals"`
	Prices struct {
		Electricity float64 `json:"electricity"`
		Gasoline    float64 `json:"gasoline"`
		Diesel      float64 `json:"diesel"`
	} `json:"prices"`
	Consumptions struct {
		GasolineL100km float64 `json:"gasoline_l_100km"`
		DieselL100km   float64 `json:"diesel_l_100km"`
	} `json:"consumptions"`
	EmissionsFactors struct {
		GasolineGKm float64 `json:"gasoline_g_km"`
		DieselGKm   float64 `json:"diesel_g_km"`
	} `json:"emissions_factors"`
	Costs struct {
		Electric float64 `json:"electric"`
		Gasoline float64 `json:"gasoline"`
		Diesel   float64 `json:"diesel"`
	} `json:"costs"`
	Savings struct {
		VsGasoline Savings `json:"vs_gasoline"`
		VsDiesel   Savings `json:"vs_diesel"`
	} `json:"savings"`
	Emissions struct {
		GasolineKg float64 `json:"gasoline_kg"`
		DieselKg   float64 `json:"diesel_kg"`
		ElectricKg float64 `json:"electric_kg"`
	} `json:"emissions"`
}

// CostService считает сравнительную стоимость и выбросы.
// Чистая функция от суммарных пробега и расхода, хранилище не трогает
type CostService struct {
	defaults config.EnergyDefaults
}

// NewCostService создает новый сервис расчета стоимости
func NewCostService(defaults config.EnergyDefaults) *CostService {
	return &CostService{
		defaults: defaults,
	}
}

// Project строит отчет по суммарным данным и параметрам.
// Процент экономии защищен от деления на ноль: при нулевой стоимости
// сравниваемого топлива возвращается 0
func (s *CostService) Project(totalDistance, totalConsumption float64, params CostParams) *CostReport {
	electricityPrice := resolve(params.ElectricityPrice, s.defaults.ElectricityPrice)
	gasolinePrice := resolve(params.GasolinePrice, s.defaults.GasolinePrice)
	dieselPrice := resolve(params.DieselPrice, s.defaults.DieselPrice)
	gasolineConsumption := resolve(params.GasolineConsumption, s.defaults.GasolineConsumption)
	dieselConsumption := resolve(params.DieselConsumption, s.defaults.DieselConsumption)
	co2Gasoline := resolve(params.CO2Gasoline, s.defaults.CO2Gasoline)
	co2Diesel := resolve(params.CO2Diesel, s.defaults.CO2Diesel)

	electricCost := totalConsumption * electricityPrice
	gasolineCost := totalDistance * (gasolineConsumption / 100) * gasolinePrice
	dieselCost := totalDistance * (dieselConsumption / 100) * dieselPrice

	savingsVsGasoline := gasolineCost - electricCost
	savingsVsDiesel := dieselCost - electricCost

	report := &CostReport{}
	report.Totals.DistanceKm = round1(totalDistance)
	report.Totals.ConsumptionKwh = round1(totalConsumption)
	report.Prices.Electricity = electricityPrice
	report.Prices.Gasoline = gasolinePrice
	report.Prices.Diesel = dieselPrice
	report.Consumptions.GasolineL100km = gasolineConsumption
	report.Consumptions.DieselL100km = dieselConsumption
	report.EmissionsFactors.GasolineGKm = co2Gasoline
	report.EmissionsFactors.DieselGKm = co2Diesel
	report.Costs.Electric = round2(electricCost)
	report.Costs.Gasoline = round2(gasolineCost)
	report.Costs.Diesel = round2(dieselCost)
	report.Savings.VsGasoline = Savings{
		Amount:     round2(savingsVsGasoline),
		Percentage: round1(savingsPercentage(savingsVsGasoline, gasolineCost)),
	}
	report.Savings.VsDiesel = Savings{
		Amount:     round2(savingsVsDiesel),
		Percentage: round1(savingsPercentage(savingsVsDiesel, dieselCost)),
	}
	// Выбросы в кг; для электричества 0, зависит от энергетического микса
	report.Emissions.GasolineKg = round1(totalDistance * co2Gasoline / 1000)
	report.Emissions.DieselKg = round1(totalDistance * co2Diesel / 1000)
	report.Emissions.ElectricKg = 0

	return report
}

// savingsPercentage процент экономии с защитой от нулевой базы
func savingsPercentage(savings, comparatorCost float64) float64 {
	if comparatorCost > 0 {
		return savings / comparatorCost * 100
	}
	return 0
}

func resolve(override *float64, fallback float64) float64 {
	if override != nil {
		return *override
	}
	return fallback
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
