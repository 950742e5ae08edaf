// Package containers manages Docker containers for integration tests via
// testcontainers-go: MySQL for the storage backend, Eclipse Mosquitto for
// the MQTT ingest source, and ntfy for push notification delivery.
//
// Containers are started in TestMain and shared across a package's tests:
//
//	var mysqlContainer *containers.MySQLContainer
//
//	func TestMain(m *testing.M) {
//	    ctx := context.Background()
//	    var err error
//	    mysqlContainer, err = containers.NewMySQLContainer(ctx, nil)
//	    if err != nil {
//	        panic(err)
//	    }
//	    code := m.Run()
//	    _ = mysqlContainer.Terminate(context.Background())
//	    os.Exit(code)
//	}
//
// All tests using this package carry the "integration" build tag:
//
//	go test -tags=integration ./...
package containers
