// Package objectstore stores record attachments. S3Store talks to S3 or a
// compatible service such as MinIO and emits a span per operation.
// MemoryStore is an in-process store for local runs.
package objectstore
