// # csvflow: Streaming, Parallel CSV Decoding and Encoding for Go
//
// csvflow converts delimited text into rows and rows back into delimited text. It follows RFC 4180 quoting, accepts any single-character separator, and decodes large inputs on a worker pool without holding the whole input in memory.
//
// # Features
//
// - Multiline quoted fields, bounded by Options.EscapeMaxLines.
// - Header modes: none, first row, or a literal list of names (rows become name to value maps).
// - Row length enforcement against the header or the first row.
// - Row-scoped errors (`EscapeSequenceError`, `RowLengthError`, `StrayQuoteError`, `TrailingDataError`) that never stop the stream, plus a strict mode (`Decoder.Rows`, `Decoder.ReadAll`) that stops at the first one.
// - Parallel decode that preserves input order for any worker count.
// - Lazy encoding through `Encoder` and buffered output through `Writer`.
//
// # Header Rows
//
// With HeaderRow the first record names the fields and is not emitted. If that record
// fails to parse there is no header: the record stays in the stream as an error
// result, later rows are returned as plain field lists, and row length is not
// enforced. Decoder.Header reports nil in that case.
//
// # Getting Started
//
//	dec, err := csvflow.NewDecoder(file, csvflow.Options{Headers: csvflow.HeaderRow()})
//	if err != nil {
//		return err
//	}
//	for res := range dec.Results(ctx) {
//		if res.Err != nil {
//			log.Printf("skipping: %v", res.Err)
//			continue
//		}
//		fmt.Println(res.Named)
//	}
//	return dec.Err()
package csvflow
