// Package api provides the transfer control plane REST API.
package api
