/*
Package rawmeta reads the unparsed metadata that AI image generators embed
in image containers and returns it as a flat key→value map.

Supported containers, chosen by file extension:

  - PNG: tEXt, zTXt and iTXt chunks (compressed text is inflated), plus
    an eXIf chunk when present
  - JPEG: the EXIF UserComment, ImageDescription and XPComment fields
  - TIFF: every named EXIF field
  - WebP: the EXIF, ICCP and XMP chunks, read with webpmux when it is
    installed and with a built-in RIFF reader otherwise

Every container also reports ImageWidth and ImageHeight when the header
can be read.

Extract never returns an error. A file that cannot be read or decoded
produces an empty map, a warning in the log and an error count in
metapick_extractions_total.
*/
package rawmeta
