package etl

import "github.com/zatekoja/obstetric-locator/pkg/config"

func configForTests() config.ClassifierConfig {
	return config.ClassifierConfig{
		WeightBeds:            0.6,
		WeightService:         0.5,
		WeightQualification:   0.5,
		WeightType:            0.3,
		WeightKeyword:         0.2,
		ScoreMinProbable:      0.4,
		ScoreMaxProbable:      0.59,
		ObstetricBedCodes:     []string{"10", "43"},
		ObstetricServiceCodes: []string{"125"},
		ObstetricClassCodes:   []string{"001"},
		HospitalTypeCodes:     []string{"05", "07", "15", "62"},
		StrictObstetric:       true,
	}
}
