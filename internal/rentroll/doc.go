/**
 * Rent-roll reconstruction
 *
 * Turns noisy per-page text (PDF text layer or OCR output) into fixed-shape
 * rent-roll records:
 *   text -> lines -> tokens -> rows -> records -> table
 *
 * One Extractor pass owns its header, row buffer and table; passes over
 * different documents share nothing and may run concurrently. Lines within
 * a pass are always consumed in page order, then line order.
 */

package rentroll
