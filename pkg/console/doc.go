// Package console drives a Wishbone bus through the text console of a
// board's soft CPU.
//
// The console answers two commands, each terminated by a carriage return:
//
//	wb read 0x<addr>             -> echo, then "0x<value>"
//	wb write 0x<addr> 0x<value>  -> echo, then a status line
//
// A status line containing "Error" is followed by the expected and found
// values. Bridge implements bus.Driver on top of this exchange, so SDB
// parsing and the shell work the same over a serial line as over Etherbone.
package console
