// Package market builds Binance spot stream names and decodes the public
// market events delivered on them.
//
// Prices and quantities are kept as apd.Decimal so no precision is lost
// between the wire and the caller.
package market
