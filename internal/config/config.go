package config

import (
	"errors"
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	DefaultConfigFileName = "config.toml"
	DefaultDBName         = "taskdeck.db"
	DefaultBaseURL        = "http://localhost:8000"
	DefaultTimeoutSeconds = 30
)

type Keymap struct {
	Quit        string `toml:"quit"`
	Refresh     string `toml:"refresh"`
	Search      string `toml:"search"`
	NextView    string `toml:"next_view"`
	CycleSort   string `toml:"cycle_sort"`
	CycleStatus string `toml:"cycle_status"`
	NextProject string `toml:"next_project"`
	Add         string `toml:"add"`
	Complete    string `toml:"complete"`
	Delete      string `toml:"delete"`
	Detail      string `toml:"detail"`
	Comment     string `toml:"comment"`
	Activity    string `toml:"activity"`
	SignOut     string `toml:"sign_out"`
	Up          string `toml:"up"`
	Down        string `toml:"down"`
	Left        string `toml:"left"`
	Right       string `toml:"right"`
	Confirm     string `toml:"confirm"`
	Cancel      string `toml:"cancel"`
}

type Config struct {
	BaseURL        string `toml:"base_url"`
	DBPath         string `toml:"db_path"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	DefaultView    string `toml:"default_view"`
	DefaultSort    string `toml:"default_sort"`
	// DefaultStatuses is the fallback applied when the status filter
	// selection is empty, so the view never blanks out silently.
	DefaultStatuses []string `toml:"default_statuses"`
	Keys            Keymap   `toml:"keys"`
}

func LoadOrCreate(path string) (Config, error) {
	cfg := defaultConfig()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := write(path, cfg); err != nil {
			return cfg, err
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBName
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = DefaultTimeoutSeconds
	}
	return cfg, nil
}

func write(path string, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultConfig() Config {
	return Config{
		BaseURL:         DefaultBaseURL,
		DBPath:          DefaultDBName,
		TimeoutSeconds:  DefaultTimeoutSeconds,
		DefaultView:     "list",
		DefaultSort:     "created_desc",
		DefaultStatuses: []string{"todo", "in_progress"},
		Keys: Keymap{
			Quit:        "q",
			Refresh:     "r",
			Search:      "/",
			NextView:    "v",
			CycleSort:   "s",
			CycleStatus: "f",
			NextProject: "p",
			Add:         "a",
			Complete:    " ",
			Delete:      "d",
			Detail:      "enter",
			Comment:     "c",
			Activity:    "o",
			SignOut:     "Q",
			Up:          "k",
			Down:        "j",
			Left:        "h",
			Right:       "l",
			Confirm:     "enter",
			Cancel:      "esc",
		},
	}
}
