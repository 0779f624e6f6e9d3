package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixo das variáveis de ambiente que espelham as flags
const EnvPrefix = "LOADTEST"

// newViper cria o viper com env LOADTEST_* e o arquivo de configuração opcional
func newViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return v, nil
}

// bindFlags aplica valores do ambiente/arquivo às flags não informadas na linha de comando.
// Precedência: flag > env > arquivo > default.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var errs []error

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed || f.Name == "help" || !v.IsSet(f.Name) {
			return
		}

		value := flagValue(v.Get(f.Name))
		if err := cmd.Flags().Set(f.Name, value); err != nil {
			errs = append(errs, fmt.Errorf("invalid value %q for --%s: %w", value, f.Name, err))
		}
	})

	return errors.Join(errs...)
}

// flagValue converte valores do viper (listas do arquivo, números) para texto de flag
func flagValue(value any) string {
	switch val := value.(type) {
	case []any:
		parts := make([]string, 0, len(val))
		for _, p := range val {
			parts = append(parts, fmt.Sprint(p))
		}
		return strings.Join(parts, ",")
	case []string:
		return strings.Join(val, ",")
	default:
		return fmt.Sprint(val)
	}
}
