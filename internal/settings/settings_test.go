package settings

import (
	"testing"

	"github.com/astghikaramyan/resource-service/internal/ptrutils"
	testutils "github.com/astghikaramyan/resource-service/internal/testing"
	"github.com/stretchr/testify/assert"
)

func TestMergeSettingsTwoNils(t *testing.T) {
	testutils.SkipIfIntegration(t)

	a := Settings{
		bindAddress: nil,
	}
	b := Settings{
		bindAddress: nil,
	}
	mergedSettings := mergeSettings(&a, &b)
	assert.NotNil(t, mergedSettings)
	assert.Nil(t, mergedSettings.bindAddress)
}

func TestMergeSettingsNilAndValue(t *testing.T) {
	testutils.SkipIfIntegration(t)

	a := Settings{
		bindAddress: nil,
	}
	b := Settings{
		bindAddress: ptrutils.ToPtr("127.0.0.1"),
	}
	mergedSettings := mergeSettings(&a, &b)
	assert.NotNil(t, mergedSettings)
	assert.Equal(t, b.bindAddress, mergedSettings.bindAddress)
}

func TestMergeSettingsTwoValues(t *testing.T) {
	testutils.SkipIfIntegration(t)

	a := Settings{
		bindAddress: ptrutils.ToPtr("127.0.0.1"),
	}
	b := Settings{
		bindAddress: ptrutils.ToPtr("0.0.0.0"),
	}
	mergedSettings := mergeSettings(&a, &b)
	assert.NotNil(t, mergedSettings)
	assert.Equal(t, b.bindAddress, mergedSettings.bindAddress)
}

func TestDefaults(t *testing.T) {
	testutils.SkipIfIntegration(t)

	s := &Settings{}
	assert.Equal(t, "0.0.0.0", s.BindAddress())
	assert.Equal(t, 8080, s.Port())
	assert.Equal(t, 8081, s.MonitoringPort())
	assert.True(t, s.MonitoringPortEnabled())
	assert.Equal(t, "sqlite", s.DatabaseDriver())
	assert.Equal(t, "./data/resourceservice.db", s.DatabasePath())
	assert.Equal(t, "eu-central-1", s.Region())
	assert.Equal(t, "resources-permanent", s.PermanentBucket())
	assert.Equal(t, "resources-staging", s.StagingBucket())
	assert.Equal(t, "", s.StorageDirectoryUrl())
	assert.Equal(t, 30, s.OutboxIntervalSeconds())
	assert.Equal(t, 10, s.HttpClientTimeoutSeconds())
}

func TestLoadSettingsFromEnv(t *testing.T) {
	testutils.SkipIfIntegration(t)

	t.Setenv("RSVC_PORT", "9090")
	t.Setenv("RSVC_DATABASE_DRIVER", "postgres")
	t.Setenv("RSVC_MONITORING_PORT_ENABLED", "false")
	t.Setenv("RSVC_STORAGE_DIRECTORY_URL", "http://directory:8085")

	envSettings, err := loadSettingsFromEnv()
	assert.NoError(t, err)
	assert.Equal(t, 9090, *envSettings.port)
	assert.Equal(t, "postgres", *envSettings.databaseDriver)
	assert.False(t, *envSettings.monitoringPortEnabled)
	assert.Equal(t, "http://directory:8085", *envSettings.storageDirectoryUrl)
	assert.Nil(t, envSettings.bindAddress)
}

func TestLoadSettingsFromCmdArgs(t *testing.T) {
	testutils.SkipIfIntegration(t)

	argsSettings, err := loadSettingsFromCmdArgs([]string{"-port", "7070", "-amqpUrl", "amqp://broker:5672/"})
	assert.NoError(t, err)
	assert.Equal(t, 7070, *argsSettings.port)
	assert.Equal(t, "amqp://broker:5672/", *argsSettings.amqpUrl)
	assert.Nil(t, argsSettings.monitoringPort)
}

func TestEnvOverridesCmdArgs(t *testing.T) {
	testutils.SkipIfIntegration(t)

	argsSettings, err := loadSettingsFromCmdArgs([]string{"-port", "7070"})
	assert.NoError(t, err)
	envSettings := &Settings{port: ptrutils.ToPtr(9090)}
	merged := mergeSettings(argsSettings, envSettings)
	assert.Equal(t, 9090, merged.Port())
}
