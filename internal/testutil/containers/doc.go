// Package containers starts Docker containers for integration tests using
// testcontainers-go:
//
//   - MySQL 8.0 for the datastore repositories
//   - an OpenSSH server for the SSH host probe
//
// Everything except this file is behind the "integration" build tag:
//
//	go test -tags=integration ./...
//
// Containers are usually shared per package through TestMain:
//
//	var mysqlContainer *containers.MySQLContainer
//
//	func TestMain(m *testing.M) {
//	    var err error
//	    mysqlContainer, err = containers.NewMySQLContainer(context.Background(), nil)
//	    if err != nil {
//	        panic(err)
//	    }
//	    code := m.Run()
//	    _ = mysqlContainer.Terminate(context.Background())
//	    os.Exit(code)
//	}
package containers
