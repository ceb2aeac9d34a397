package devops

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

const DefaultParameterName = "databases"

type DBEntry struct {
	Name     string `yaml:"name" json:"name"`
	Host     string `yaml:"host" json:"host"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// DSN builds a go-sql-driver DSN. The host defaults to port 3306.
func (db DBEntry) DSN(schema string) string {
	host := db.Host
	if !strings.Contains(host, ":") {
		host = host + ":3306"
	}
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true", db.Username, db.Password, host, schema)
}

type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

func ConnectSSM(ctx context.Context) (*ssm.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return ssm.NewFromConfig(cfg), nil
}

// LoadDatabases reads the YAML list of database entries stored in a
// SecureString parameter, keyed by lower-cased name.
func LoadDatabases(ctx context.Context, client SSMAPI, paramName string) (map[string]DBEntry, error) {
	if paramName == "" {
		paramName = DefaultParameterName
	}

	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(paramName),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get parameter %s: %w", paramName, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return nil, fmt.Errorf("parameter %s is empty", paramName)
	}

	var entries []DBEntry
	if err := yaml.Unmarshal([]byte(*out.Parameter.Value), &entries); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	result := make(map[string]DBEntry, len(entries))
	for _, entry := range entries {
		result[strings.ToLower(entry.Name)] = entry
	}
	return result, nil
}
