package config

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/riskibarqy/volley-ticker/internal/domain/ticker"
	"gopkg.in/yaml.v3"
)

// TrackedTeam is one entry of the tracked-teams file.
type TrackedTeam struct {
	Name       string `yaml:"name"`
	Host       string `yaml:"host" validate:"omitempty,url"`
	Region     string `yaml:"region" validate:"required,sams_region"`
	LeagueID   string `yaml:"league_id"`
	LeagueName string `yaml:"league_name" validate:"required_with=TeamName"`
	Gender     string `yaml:"gender" validate:"omitempty,oneof=female male mixed"`
	TeamName   string `yaml:"team_name" validate:"required_without=TeamID"`
	TeamID     string `yaml:"team_id" validate:"required_without=TeamName"`
}

type teamsFile struct {
	Trackers []TrackedTeam `yaml:"trackers" validate:"dive"`
}

// NewValidator returns a validator that knows the SAMS region codes.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("sams_region", func(fl validator.FieldLevel) bool {
		return ticker.IsKnownRegion(fl.Field().String())
	})
	return v
}

// LoadTrackedTeams reads and validates the YAML file at path. An empty path
// yields no teams.
func LoadTrackedTeams(path string) ([]TrackedTeam, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read TRACKER_TEAMS_FILE %s", path)
	}
	return ParseTrackedTeams(raw)
}

func ParseTrackedTeams(raw []byte) ([]TrackedTeam, error) {
	var file teamsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, errors.Wrap(err, "decode tracked teams")
	}
	for i := range file.Trackers {
		item := &file.Trackers[i]
		item.Region = strings.ToLower(strings.TrimSpace(item.Region))
		item.Gender = strings.ToLower(strings.TrimSpace(item.Gender))
		item.Host = strings.TrimRight(strings.TrimSpace(item.Host), "/")
	}
	if err := NewValidator().Struct(file); err != nil {
		return nil, errors.Wrap(err, "validate tracked teams")
	}
	return file.Trackers, nil
}
