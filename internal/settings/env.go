package settings

import (
	"os"
	"strconv"
	"strings"
)

const envKeyPrefix string = "RSVC"

const bindAddressEnvKey string = envKeyPrefix + "_BIND_ADDRESS"
const portEnvKey string = envKeyPrefix + "_PORT"
const monitoringPortEnvKey string = envKeyPrefix + "_MONITORING_PORT"
const monitoringPortEnabledEnvKey string = envKeyPrefix + "_MONITORING_PORT_ENABLED"
const databaseDriverEnvKey string = envKeyPrefix + "_DATABASE_DRIVER"
const databasePathEnvKey string = envKeyPrefix + "_DATABASE_PATH"
const databaseDsnEnvKey string = envKeyPrefix + "_DATABASE_DSN"
const accessKeyIdEnvKey string = envKeyPrefix + "_ACCESS_KEY_ID"
const secretAccessKeyEnvKey string = envKeyPrefix + "_SECRET_ACCESS_KEY"
const regionEnvKey string = envKeyPrefix + "_REGION"
const s3EndpointEnvKey string = envKeyPrefix + "_S3_ENDPOINT"
const permanentBucketEnvKey string = envKeyPrefix + "_PERMANENT_BUCKET"
const stagingBucketEnvKey string = envKeyPrefix + "_STAGING_BUCKET"
const storageDirectoryUrlEnvKey string = envKeyPrefix + "_STORAGE_DIRECTORY_URL"
const songServiceUrlEnvKey string = envKeyPrefix + "_SONG_SERVICE_URL"
const amqpUrlEnvKey string = envKeyPrefix + "_AMQP_URL"
const outboxIntervalSecondsEnvKey string = envKeyPrefix + "_OUTBOX_INTERVAL_SECONDS"
const httpClientTimeoutSecondsEnvKey string = envKeyPrefix + "_HTTP_CLIENT_TIMEOUT_SECONDS"

func getStringFromEnv(envKey string) *string {
	val := os.Getenv(envKey)
	if val == "" {
		return nil
	}
	return &val
}

func getIntFromEnv(envKey string) *int {
	val := os.Getenv(envKey)
	if val == "" {
		return nil
	}
	int64Val, err := strconv.ParseInt(val, 10, 32)
	if err != nil {
		return nil
	}
	intVal := int(int64Val)
	return &intVal
}

func getBoolFromEnv(envKey string) *bool {
	val := os.Getenv(envKey)
	val = strings.ToLower(val)
	if val == "" {
		return nil
	}
	retval := val == "1" || val == "t" || val == "true"
	return &retval
}

func loadSettingsFromEnv() (*Settings, error) {
	return &Settings{
		bindAddress:              getStringFromEnv(bindAddressEnvKey),
		port:                     getIntFromEnv(portEnvKey),
		monitoringPort:           getIntFromEnv(monitoringPortEnvKey),
		monitoringPortEnabled:    getBoolFromEnv(monitoringPortEnabledEnvKey),
		databaseDriver:           getStringFromEnv(databaseDriverEnvKey),
		databasePath:             getStringFromEnv(databasePathEnvKey),
		databaseDsn:              getStringFromEnv(databaseDsnEnvKey),
		accessKeyId:              getStringFromEnv(accessKeyIdEnvKey),
		secretAccessKey:          getStringFromEnv(secretAccessKeyEnvKey),
		region:                   getStringFromEnv(regionEnvKey),
		s3Endpoint:               getStringFromEnv(s3EndpointEnvKey),
		permanentBucket:          getStringFromEnv(permanentBucketEnvKey),
		stagingBucket:            getStringFromEnv(stagingBucketEnvKey),
		storageDirectoryUrl:      getStringFromEnv(storageDirectoryUrlEnvKey),
		songServiceUrl:           getStringFromEnv(songServiceUrlEnvKey),
		amqpUrl:                  getStringFromEnv(amqpUrlEnvKey),
		outboxIntervalSeconds:    getIntFromEnv(outboxIntervalSecondsEnvKey),
		httpClientTimeoutSeconds: getIntFromEnv(httpClientTimeoutSecondsEnvKey),
	}, nil
}
