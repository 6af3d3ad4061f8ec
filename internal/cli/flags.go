package cli

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"metapick/internal/logging"
)

// bindFlag makes flag the highest-precedence source of key. Binding only
// fails for a nil flag, which is a programming error.
func bindFlag(v *viper.Viper, flag *pflag.Flag, key string) {
	if err := v.BindPFlag(key, flag); err != nil {
		logging.Fatal("failed to bind flag for %s: %v", key, err)
	}
}
