package main

import "taskboard/internal/app"

func main() {
	app.InitDefaultLogger()
	app.MustReadEnv()
	app.MustInitApplicationLogger()

	app.MustConnectPostgres()
	defer app.DisconnectPostgres()

	app.MustRunMigrations()

	app.MustConnectRedis()
	defer app.DisconnectRedis()

	app.MustStartBroadcastRelay()
	defer app.StopBroadcastRelay()

	app.MustListenAndServeHTTP()
}
