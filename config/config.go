// Package config declares the process-level settings of the adapter and the
// CLI flags that fill them.
package config

import (
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"
	"time"

	"gopkg.in/urfave/cli.v1"
)

var (
	DefaultConfig = &Config{
		ProviderName:  "nova",
		HTTPAPIAddr:   "127.0.0.1:8420",
		LibratoSource: "cloud-adapter",
	}

	// Dialects are the provider names a session can be built for.
	Dialects = []string{"ec2", "nova"}

	configType = reflect.ValueOf(Config{}).Type()

	defs = []*ConfigDef{
		NewConfigDef("ProviderName", &cli.StringFlag{
			Value: DefaultConfig.ProviderName,
			Usage: fmt.Sprintf("The wire dialect of the cloud to talk to (%s)", strings.Join(Dialects, ", ")),
		}),
		NewConfigDef("HTTPAPIAddr", &cli.StringFlag{
			Value: DefaultConfig.HTTPAPIAddr,
			Usage: "Listen address of the HTTP API started by `serve`",
		}),
		NewConfigDef("HTTPAPIAuth", &cli.StringFlag{
			Usage: "username:password required by the HTTP API",
		}),
		NewConfigDef("LibratoEmail", &cli.StringFlag{
			Usage: "Librato metrics account email",
		}),
		NewConfigDef("LibratoToken", &cli.StringFlag{
			Usage: "Librato metrics account token",
		}),
		NewConfigDef("LibratoSource", &cli.StringFlag{
			Value: DefaultConfig.LibratoSource,
			Usage: "Librato metrics source name",
		}),
		NewConfigDef("SentryDSN", &cli.StringFlag{
			Usage: "The DSN to send Sentry events to",
		}),
		NewConfigDef("SentryHookErrors", &cli.BoolFlag{
			Usage: "Add logrus.ErrorLevel to logrus sentry hook",
		}),
		NewConfigDef("RequestTimeout", &cli.DurationFlag{
			Value: 0,
			Usage: "Overall timeout for a single one-shot CLI command (not serve), 0 for none",
		}),
		NewConfigDef("SilenceMetrics", &cli.BoolFlag{
			Usage: "silence metrics logging in case no Librato creds have been provided",
		}),
		NewConfigDef("Debug", &cli.BoolFlag{
			Usage: "set log level to debug",
		}),

		// non-config flags
		NewConfigDef("echo-config", &cli.BoolFlag{
			Usage: "echo parsed config and exit",
		}),
	}

	// Flags is all global CLI flags accepted by `cloud-adapter`
	Flags = defFlags(defs)
)

func caEnvVars(key string) string {
	return strings.ToUpper(strings.Join(caEnvVarsSlice(key), ","))
}

func caEnvVarsSlice(key string) []string {
	return []string{
		fmt.Sprintf("CLOUD_ADAPTER_%s", key),
		key,
	}
}

func defFlags(defs []*ConfigDef) []cli.Flag {
	f := []cli.Flag{}
	for _, def := range defs {
		f = append(f, def.Flag)
	}
	return f
}

type ConfigDef struct {
	FieldName string
	Name      string
	EnvVar    string
	Flag      cli.Flag
	HasField  bool
}

func NewConfigDef(fieldName string, flag cli.Flag) *ConfigDef {
	if fieldName == "" {
		panic("empty field name")
	}

	name := ""

	if string(fieldName[0]) == strings.ToLower(string(fieldName[0])) {
		name = fieldName
	} else {
		field, _ := configType.FieldByName(fieldName)
		name = field.Tag.Get("config")
	}

	env := strings.ToUpper(strings.Replace(name, "-", "_", -1))

	def := &ConfigDef{
		FieldName: fieldName,
		Name:      name,
		EnvVar:    env,
		HasField:  fieldName != name,
	}

	envPrefixed := caEnvVars(env)

	switch f := flag.(type) {
	case *cli.BoolFlag:
		def.Flag, f.Name, f.EnvVar = f, name, envPrefixed
	case *cli.StringFlag:
		def.Flag, f.Name, f.EnvVar = f, name, envPrefixed
	case *cli.IntFlag:
		def.Flag, f.Name, f.EnvVar = f, name, envPrefixed
	case *cli.DurationFlag:
		def.Flag, f.Name, f.EnvVar = f, name, envPrefixed
	}

	return def
}

// Config contains the process-level configuration. Provider credentials and
// tuning live in ProviderConfig.
type Config struct {
	ProviderName  string `config:"provider-name"`
	HTTPAPIAddr   string `config:"http-api-addr"`
	HTTPAPIAuth   string `config:"http-api-auth"`
	LibratoEmail  string `config:"librato-email"`
	LibratoToken  string `config:"librato-token"`
	LibratoSource string `config:"librato-source"`
	SentryDSN     string `config:"sentry-dsn"`

	RequestTimeout time.Duration `config:"request-timeout"`

	SentryHookErrors bool `config:"sentry-hook-errors"`
	SilenceMetrics   bool `config:"silence-metrics"`
	Debug            bool `config:"debug"`

	ProviderConfig *ProviderConfig
}

// FromCLIContext creates a Config using a cli.Context by pulling configuration
// from the flags in the context.
func FromCLIContext(c *cli.Context) *Config {
	cfg := *DefaultConfig
	cfgVal := reflect.ValueOf(&cfg).Elem()

	for _, def := range defs {
		if !def.HasField {
			continue
		}

		field := cfgVal.FieldByName(def.FieldName)

		switch def.Flag.(type) {
		case *cli.BoolFlag:
			field.SetBool(c.GlobalBool(def.Name))
		case *cli.DurationFlag:
			field.Set(reflect.ValueOf(c.GlobalDuration(def.Name)))
		case *cli.IntFlag:
			field.SetInt(int64(c.GlobalInt(def.Name)))
		case *cli.StringFlag:
			field.SetString(c.GlobalString(def.Name))
		}
	}

	cfg.ProviderConfig = ProviderConfigFromEnviron(cfg.ProviderName)

	return &cfg
}

// WriteEnvConfig writes the given configuration to out. The format of the
// output is a list of environment variables settings suitable to be sourced
// by a Bourne-like shell.
func WriteEnvConfig(cfg *Config, out io.Writer) {
	cfgMap := map[string]interface{}{}
	cfgElem := reflect.ValueOf(cfg).Elem()

	for _, def := range defs {
		if !def.HasField {
			continue
		}

		field := cfgElem.FieldByName(def.FieldName)
		cfgMap[def.Name] = field.Interface()
	}

	sortedCfgMapKeys := []string{}

	for key := range cfgMap {
		sortedCfgMapKeys = append(sortedCfgMapKeys, key)
	}

	sort.Strings(sortedCfgMapKeys)

	fmt.Fprintf(out, "# cloud-adapter env config generated %s\n", time.Now().UTC())
	for _, key := range sortedCfgMapKeys {
		envKey := fmt.Sprintf("CLOUD_ADAPTER_%s", strings.ToUpper(strings.Replace(key, "-", "_", -1)))
		fmt.Fprintf(out, "export %s=%q\n", envKey, fmt.Sprintf("%v", cfgMap[key]))
	}
	if cfg.ProviderConfig != nil {
		upperProvider := strings.ToUpper(cfg.ProviderName)
		cfg.ProviderConfig.Map(func(key, value string) {
			if strings.Contains(key, "PASSWORD") || strings.Contains(key, "SECRET") {
				return
			}
			fmt.Fprintf(out, "export CLOUD_ADAPTER_%s_%s=%q\n", upperProvider, key, value)
		})
	}
	fmt.Fprintf(out, "# end cloud-adapter env config\n")
}
