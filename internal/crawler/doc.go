// Package crawler fetches a small, polite set of pages from a company site.
//
// A Session owns the robots.txt cache, the per-domain pacer and the fetch
// semaphore for one analysis; nothing in a Session is shared with other
// requests except the HTTP transport.
package crawler
