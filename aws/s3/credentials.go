package s3

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Credentials are the static keys used to reach S3.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// LoadCredentials reads an ini style key-value file with an [AWS] section
// holding AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY. Both are required.
func LoadCredentials(path string) (Credentials, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("ini")
	if err := v.ReadInConfig(); err != nil {
		return Credentials{}, errors.Wrapf(err, "reading credentials file '%s'", path)
	}
	c := Credentials{
		AccessKeyID:     unquote(v.GetString("AWS.AWS_ACCESS_KEY_ID")),
		SecretAccessKey: unquote(v.GetString("AWS.AWS_SECRET_ACCESS_KEY")),
	}
	if c.AccessKeyID == "" {
		return Credentials{}, errors.Errorf("%s: no AWS_ACCESS_KEY_ID in [AWS] section", path)
	}
	if c.SecretAccessKey == "" {
		return Credentials{}, errors.Errorf("%s: no AWS_SECRET_ACCESS_KEY in [AWS] section", path)
	}
	return c, nil
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '\'' && s[len(s)-1] == '\'' || s[0] == '"' && s[len(s)-1] == '"') {
		return s[1 : len(s)-1]
	}
	return s
}
