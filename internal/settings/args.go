package settings

import (
	"flag"
)

func registerStringFlag(flagSet *flag.FlagSet, name string, defaultValue string, description string) func() *string {
	stringVar := flagSet.String(name, defaultValue, description)
	accessor := func() *string {
		found := false
		flagSet.Visit(func(f *flag.Flag) {
			if f.Name == name {
				found = true
			}
		})
		if !found {
			return nil
		}
		return stringVar
	}
	return accessor
}

func registerIntFlag(flagSet *flag.FlagSet, name string, defaultValue int, description string) func() *int {
	intVar := flagSet.Int(name, defaultValue, description)
	accessor := func() *int {
		found := false
		flagSet.Visit(func(f *flag.Flag) {
			if f.Name == name {
				found = true
			}
		})
		if !found {
			return nil
		}
		return intVar
	}
	return accessor
}

func registerBoolFlag(flagSet *flag.FlagSet, name string, defaultValue bool, description string) func() *bool {
	boolVar := flagSet.Bool(name, defaultValue, description)
	accessor := func() *bool {
		found := false
		flagSet.Visit(func(f *flag.Flag) {
			if f.Name == name {
				found = true
			}
		})
		if !found {
			return nil
		}
		return boolVar
	}
	return accessor
}

func loadSettingsFromCmdArgs(args []string) (*Settings, error) {
	flagSet := flag.NewFlagSet("resourceservice", flag.ContinueOnError)
	bindAddressAccessor := registerStringFlag(flagSet, "bindAddress", defaultBindAddress, "the address the http socket is bound to")
	portAccessor := registerIntFlag(flagSet, "port", defaultPort, "the port for the resource api")
	monitoringPortAccessor := registerIntFlag(flagSet, "monitoringPort", defaultMonitoringPort, "the monitoring port of the resource service")
	monitoringPortEnabledAccessor := registerBoolFlag(flagSet, "monitoringPortEnabled", defaultMonitoringPortEnabled, "serve metrics and health on the monitoring port")
	databaseDriverAccessor := registerStringFlag(flagSet, "databaseDriver", defaultDatabaseDriver, "the database driver (sqlite or postgres)")
	databasePathAccessor := registerStringFlag(flagSet, "databasePath", defaultDatabasePath, "the sqlite database path")
	databaseDsnAccessor := registerStringFlag(flagSet, "databaseDsn", "", "the postgres connection string")
	accessKeyIdAccessor := registerStringFlag(flagSet, "accessKeyId", "", "the s3 access key id")
	secretAccessKeyAccessor := registerStringFlag(flagSet, "secretAccessKey", "", "the s3 secret access key")
	regionAccessor := registerStringFlag(flagSet, "region", defaultRegion, "the region for the s3 api")
	s3EndpointAccessor := registerStringFlag(flagSet, "s3Endpoint", defaultS3Endpoint, "the endpoint for the s3 api")
	permanentBucketAccessor := registerStringFlag(flagSet, "permanentBucket", defaultPermanentBucket, "the fallback bucket for the permanent tier")
	stagingBucketAccessor := registerStringFlag(flagSet, "stagingBucket", defaultStagingBucket, "the fallback bucket for the staging tier")
	storageDirectoryUrlAccessor := registerStringFlag(flagSet, "storageDirectoryUrl", "", "the base url of the storage directory service")
	songServiceUrlAccessor := registerStringFlag(flagSet, "songServiceUrl", "", "the base url of the song metadata service")
	amqpUrlAccessor := registerStringFlag(flagSet, "amqpUrl", defaultAmqpUrl, "the amqp broker url")
	outboxIntervalSecondsAccessor := registerIntFlag(flagSet, "outboxIntervalSeconds", defaultOutboxIntervalSeconds, "the outbox drain interval in seconds")
	httpClientTimeoutSecondsAccessor := registerIntFlag(flagSet, "httpClientTimeoutSeconds", defaultHttpClientTimeoutSeconds, "the timeout for outgoing http calls in seconds")

	err := flagSet.Parse(args)
	if err != nil {
		return nil, err
	}

	return &Settings{
		bindAddress:              bindAddressAccessor(),
		port:                     portAccessor(),
		monitoringPort:           monitoringPortAccessor(),
		monitoringPortEnabled:    monitoringPortEnabledAccessor(),
		databaseDriver:           databaseDriverAccessor(),
		databasePath:             databasePathAccessor(),
		databaseDsn:              databaseDsnAccessor(),
		accessKeyId:              accessKeyIdAccessor(),
		secretAccessKey:          secretAccessKeyAccessor(),
		region:                   regionAccessor(),
		s3Endpoint:               s3EndpointAccessor(),
		permanentBucket:          permanentBucketAccessor(),
		stagingBucket:            stagingBucketAccessor(),
		storageDirectoryUrl:      storageDirectoryUrlAccessor(),
		songServiceUrl:           songServiceUrlAccessor(),
		amqpUrl:                  amqpUrlAccessor(),
		outboxIntervalSeconds:    outboxIntervalSecondsAccessor(),
		httpClientTimeoutSeconds: httpClientTimeoutSecondsAccessor(),
	}, nil
}
