// Package core provides the offer import, export and aggregation logic.
//
// This package is independent of any transport or storage engine. The CLI,
// the HTTP server and tests drive it through the repository interfaces in
// repository.go, which the store packages implement.
//
// # Import
//
// [Importer.Run] reads a TSV stream line by line. The first line is the
// header; every following line is decoded with the tsv codec and handed to a
// [Sink]. Lines that fail to decode are skipped and only counted. Decoded rows
// are consumed concurrently, bounded by [ImportOptions.MaxInFlight], and Run
// returns only after every dispatched row has settled.
//
// What happens when a sink fails is chosen by [FailurePolicy]:
//
//   - [FailIsolate] records the row in [ImportResult.Failed] and continues
//   - [FailAbort] stops reading, waits for rows already in flight and
//     returns the first error
//
// [OfferSink] is the persisting sink: it resolves the host through a
// [HostResolver] and stores the offer with empty aggregates. [PrintSink]
// writes each offer to an io.Writer instead.
//
// # Export
//
// [Exporter] writes the canonical header and then one row per offer through
// a tsv.StreamWriter, in order, and returns after the destination is flushed.
//
// # Aggregates
//
// [CommentService.Create] is the only writer of an offer's comment count and
// rating: the count is incremented, the rating is recomputed from all
// comments of the offer. [FavoritesService] maintains each user's favorite
// set; the per-viewer isFavorite flag is derived from it at read time.
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages using [MapError].
package core
