// Package util holds small generic containers shared by the engine packages
package util
