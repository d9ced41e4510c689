// Package services contains the business logic layer between the HTTP
// transport and the data pipeline. The analysis service owns upload sessions
// and orchestrates the dataprocessing stages against them.
package services
