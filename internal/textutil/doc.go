// Package textutil provides tokenization and normalization helpers shared by
// the embedding and mining paths.
package textutil
