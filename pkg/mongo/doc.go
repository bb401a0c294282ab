// Package mongo connects notifykit to MongoDB with the official v2 driver.
//
// Config is read from MONGODB_* environment variables. New retries the
// initial connect and ping with exponential backoff, and NewWithDatabase
// returns the database the mongo notification store writes to.
package mongo
