package utils

import (
	"github.com/montanaflynn/stats"
	"github.com/raushankrgupta/gait-speed-service/models"
)

// ComputeSpeedStats returns the mean and population standard deviation of speeds,
// rounded to two decimals.
func ComputeSpeedStats(speeds []float64) (models.SpeedStats, error) {
	if len(speeds) == 0 {
		return models.SpeedStats{}, nil
	}

	data := stats.Float64Data(speeds)
	mean, err := data.Mean()
	if err != nil {
		return models.SpeedStats{}, err
	}
	stdev, err := data.StandardDeviationPopulation()
	if err != nil {
		return models.SpeedStats{}, err
	}

	mean, _ = stats.Round(mean, 2)
	stdev, _ = stats.Round(stdev, 2)

	return models.SpeedStats{
		Mean:         mean,
		Stdev:        stdev,
		TotalRecords: len(speeds),
	}, nil
}
