package metadata

/**
 * @brief Parameters of a sampled 2D image.
 */
type ImageDesc struct {
	Width     uint32
	Height    uint32
	MipLevels uint32
	Format    ImageFormat
}

/** @brief Pixel data for one mip level, tightly packed. */
type ImageData struct {
	Level  uint32
	Pixels []byte
}
