// Package connectors holds the sources sync roots are read from.
// The filesystem connector lists, opens and watches local directories.
package connectors
