// Package crawler fetches and parses content feeds concurrently.
//
// A Crawler holds a counting semaphore that caps the number of feeds being fetched at
// once. Each feed runs its own fetch+parse attempt loop; results are handed to the
// caller's channel in completion order, and a full channel suspends the producing
// goroutines, which in turn keeps further permits from being released.
package crawler
