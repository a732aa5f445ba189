package settings

import (
	"encoding/json"
	"os"
)

type jsonSettings struct {
	BindAddress              *string `json:"bindAddress"`
	Port                     *int    `json:"port"`
	MonitoringPort           *int    `json:"monitoringPort"`
	MonitoringPortEnabled    *bool   `json:"monitoringPortEnabled"`
	DatabaseDriver           *string `json:"databaseDriver"`
	DatabasePath             *string `json:"databasePath"`
	DatabaseDsn              *string `json:"databaseDsn"`
	AccessKeyId              *string `json:"accessKeyId"`
	SecretAccessKey          *string `json:"secretAccessKey"`
	Region                   *string `json:"region"`
	S3Endpoint               *string `json:"s3Endpoint"`
	PermanentBucket          *string `json:"permanentBucket"`
	StagingBucket            *string `json:"stagingBucket"`
	StorageDirectoryUrl      *string `json:"storageDirectoryUrl"`
	SongServiceUrl           *string `json:"songServiceUrl"`
	AmqpUrl                  *string `json:"amqpUrl"`
	OutboxIntervalSeconds    *int    `json:"outboxIntervalSeconds"`
	HttpClientTimeoutSeconds *int    `json:"httpClientTimeoutSeconds"`
}

func loadSettingsFromJson(jsonFile string) (*Settings, error) {
	jsonData, err := os.ReadFile(jsonFile)
	if err != nil {
		return nil, err
	}
	decoded := jsonSettings{}
	err = json.Unmarshal(jsonData, &decoded)
	if err != nil {
		return nil, err
	}
	return &Settings{
		bindAddress:              decoded.BindAddress,
		port:                     decoded.Port,
		monitoringPort:           decoded.MonitoringPort,
		monitoringPortEnabled:    decoded.MonitoringPortEnabled,
		databaseDriver:           decoded.DatabaseDriver,
		databasePath:             decoded.DatabasePath,
		databaseDsn:              decoded.DatabaseDsn,
		accessKeyId:              decoded.AccessKeyId,
		secretAccessKey:          decoded.SecretAccessKey,
		region:                   decoded.Region,
		s3Endpoint:               decoded.S3Endpoint,
		permanentBucket:          decoded.PermanentBucket,
		stagingBucket:            decoded.StagingBucket,
		storageDirectoryUrl:      decoded.StorageDirectoryUrl,
		songServiceUrl:           decoded.SongServiceUrl,
		amqpUrl:                  decoded.AmqpUrl,
		outboxIntervalSeconds:    decoded.OutboxIntervalSeconds,
		httpClientTimeoutSeconds: decoded.HttpClientTimeoutSeconds,
	}, nil
}
