// Package zeal implements the debug stress-test configuration that forces
// collections far more often than the default heuristics.
//
// A zeal setting is a list of modes and an optional frequency:
//
//	GCROOT_ZEAL="2,1"            collect on every allocation
//	GCROOT_ZEAL="7;14,50"        minor GC every 50 nursery allocations and a
//	                             compacting GC every 50 allocations
//	GCROOT_ZEAL="help"           print the mode table and do not run
//
// Modes can be given by number or by name (case-insensitive). The frequency
// defaults to DefaultFrequency.
//
// Zeal is inert unless a setting is supplied. Builds tagged gcroot_release
// ignore the environment entirely; an explicit setting passed in code still
// works there so that tests can opt in.
package zeal
