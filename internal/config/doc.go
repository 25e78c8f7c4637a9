// Package config provides configuration parsing for reeldeck.
//
// The configuration is stored in reeldeck.json. This package handles
// loading, saving, and validating configuration, with environment
// variable overrides (REELDECK_*) for secrets and per-deployment values.
//
// # Configuration File Structure
//
//	{
//	  "server": {
//	    "host": "localhost",
//	    "port": 8080,
//	    "shutdownTimeout": "10s"
//	  },
//	  "state": {
//	    "dir": ".reeldeck"
//	  },
//	  "storage": {
//	    "backend": "postgres",
//	    "dsn": "postgres://reeldeck@localhost/reeldeck?sslmode=disable",
//	    "table": "reeldeck_userdata"
//	  },
//	  "identity": {
//	    "issuerUrl": "https://auth.example.com",
//	    "clientId": "reeldeck",
//	    "confirmTimeout": "1500ms"
//	  },
//	  "catalog": {
//	    "baseUrl": "https://api.themoviedb.org/3",
//	    "rateLimit": 40,
//	    "burst": 10
//	  },
//	  "sync": {
//	    "timeout": "10s"
//	  },
//	  "metrics": {
//	    "enabled": true
//	  }
//	}
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Address:", cfg.Address())
package config
