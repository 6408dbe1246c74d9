// Package ingest stores crawled content and announces it on the broker.
package ingest
