package plasa

import (
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config is the typed view of the viper settings that the engine components take.
type Config struct {
	RootDir        string
	Registry       Address
	FactsFile      string
	ListenAddr     string
	MaxAttempts    int
	ReadTimeout    time.Duration
	AttemptTimeout time.Duration
	FanOut         int
	TopHolders     int
	FactCacheSize  int
	PollInterval   time.Duration
	LogLevel       int
}

// InitConfig sets up our Viper config object
func InitConfig(config *viper.Viper) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		LogCLI(err.Error(), 0)
	}
	config.SetDefault("rootDir", homeDir+"/plasa/")
	config.SetConfigType("yaml")
	config.SetConfigFile(config.GetString("rootDir") + "config.yaml")
	err = config.ReadInConfig()
	if err != nil {
		LogCLI(err.Error(), 4)
	}
	setDefaults(config)
	initRootDir(config)
	if err := Touch(config.GetString("rootDir") + "config.yaml"); err != nil {
		LogCLI(err.Error(), 2)
		return
	}
	if err := config.WriteConfig(); err != nil {
		LogCLI(err.Error(), 2)
	}
}

func setDefaults(config *viper.Viper) {
	config.SetDefault("registry", "")
	config.SetDefault("factsFile", "facts.json")
	config.SetDefault("listenAddr", "127.0.0.1:1031")
	// one pinned anchor plus two fresh ones before a request gives up
	config.SetDefault("maxAttempts", 3)
	config.SetDefault("readTimeout", "2s")
	config.SetDefault("attemptTimeout", "10s")
	config.SetDefault("fanOut", 16)
	config.SetDefault("topHolders", 10)
	config.SetDefault("factCacheSize", 4096)
	config.SetDefault("pollInterval", "2s")
	config.SetDefault("logLevel", 4)
}

// LoadConfig reads the typed settings out of a viper instance.
func LoadConfig(config *viper.Viper) Config {
	setDefaults(config)
	c := Config{
		RootDir:        config.GetString("rootDir"),
		Registry:       config.GetString("registry"),
		FactsFile:      config.GetString("factsFile"),
		ListenAddr:     config.GetString("listenAddr"),
		MaxAttempts:    config.GetInt("maxAttempts"),
		ReadTimeout:    config.GetDuration("readTimeout"),
		AttemptTimeout: config.GetDuration("attemptTimeout"),
		FanOut:         config.GetInt("fanOut"),
		TopHolders:     config.GetInt("topHolders"),
		FactCacheSize:  config.GetInt("factCacheSize"),
		PollInterval:   config.GetDuration("pollInterval"),
		LogLevel:       config.GetInt("logLevel"),
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.FanOut < 1 {
		c.FanOut = 1
	}
	return c
}

func initRootDir(conf *viper.Viper) {
	_, err := os.Stat(conf.GetString("rootDir"))
	if os.IsNotExist(err) {
		err = os.Mkdir(conf.GetString("rootDir"), 0755)
		if err != nil {
			LogCLI(err, 1)
		}
	}
}
