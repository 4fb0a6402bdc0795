// Package project defines the workspace model shared by the host and the
// compiler: the file table, per-file compile and link results, the immutable
// snapshot produced by a rebuild and the position index used by queries.
//
// The compiler and the extension loader are consumed through the Compiler and
// ExtensionLoader interfaces; package stepc and package extension provide the
// implementations wired by the server.
package project
