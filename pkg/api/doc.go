// Package api assembles the SIMS HTTP API.
//
// NewServer mounts the record, access, directory and import handlers behind
// bearer-token authentication and access resolution. Record routes scope
// every query with the caller's hierarchy filter and re-check the result
// before returning it:
//
//	GET    /api/v1/records?status=Open,In%20Progress&recordType=&limit=&offset=
//	POST   /api/v1/records
//	GET    /api/v1/records/{id}
//	PUT    /api/v1/records/{id}/status
//	POST   /api/v1/records/{id}/approve
//	POST   /api/v1/records/{id}/reject
//	DELETE /api/v1/records/{id}
//
// NewHealthRouter serves /health, /health/live, /health/ready and /metrics
// on the separate health port.
package api
